package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"propchat/internal/app/store"
	"propchat/internal/configs"
)

func newAdminCommand(cfg *configs.AppConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage back-office accounts",
	}

	var role string

	provisionCmd := &cobra.Command{
		Use:     "provision <user-id>",
		Short:   "Create a back-office user; only one ADMIN may exist",
		Args:    cobra.ExactArgs(1),
		Example: "  propchat admin provision u1\n  propchat admin provision u2 --role USER",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := store.Role(role)
			if r != store.RoleAdmin && r != store.RoleUser {
				return fmt.Errorf("unknown role %q", role)
			}

			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			u, err := st.CreateUser(cmd.Context(), args[0], r)
			switch {
			case errors.Is(err, store.ErrAdminExists):
				existing, ferr := st.FirstAdmin(cmd.Context())
				if ferr != nil {
					return err
				}
				return fmt.Errorf("%w (current admin: %s)", err, existing.ID)
			case err != nil:
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s\n", u.Role, u.ID)
			return nil
		},
	}
	provisionCmd.Flags().StringVar(&role, "role", string(store.RoleAdmin), "Role of the new user (ADMIN or USER)")

	cmd.AddCommand(provisionCmd)
	return cmd
}
