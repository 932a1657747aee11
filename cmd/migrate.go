package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"propchat/internal/app/db"
	"propchat/internal/configs"
)

func newMigrateCommand(cfg *configs.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.StoreDriver != configs.StoreDriverPostgres {
				return fmt.Errorf("migrate requires STORE_DRIVER=%s", configs.StoreDriverPostgres)
			}

			pool, err := db.NewPool(cmd.Context(), cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			pool.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
