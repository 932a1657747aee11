package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"propchat/internal/configs"
	"propchat/internal/pkg/auth/jwt"
)

func newTokenCommand(cfg *configs.AppConfig) *cobra.Command {
	var (
		role     string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign a session token for a back-office user",
		Long: "Sign a session token with JWT_SECRET. The account service normally issues these; " +
			"the command exists for local development and operations.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := jwt.GenerateToken(&jwt.Payload{ID: args[0], Role: role}, cfg.JWTSecret, duration)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", jwt.RoleAdmin, "Role claim")
	cmd.Flags().DurationVar(&duration, "ttl", jwt.SessionExpiration, "Token lifetime")

	return cmd
}
