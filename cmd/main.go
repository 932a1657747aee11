/*
Package main is the entry point for the propchat server.

The root command loads .env and the environment configuration, initializes the global logger and
dispatches to a subcommand: serve (the HTTP and WebSocket server), migrate, admin provision and token.
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"propchat/internal/app/db"
	"propchat/internal/app/store"
	"propchat/internal/app/store/memstore"
	"propchat/internal/configs"
	"propchat/internal/pkg/logx"
)

func NewRootCommand() *cobra.Command {
	var envFile string
	var cfg *configs.AppConfig

	cmd := &cobra.Command{
		Use:           "propchat",
		Short:         "Presence tracking and real-time guest/admin chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			loaded, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			*cfg = *loaded
			return nil
		},
	}

	cfg = &configs.AppConfig{}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")

	cmd.AddCommand(
		newServeCommand(cfg),
		newMigrateCommand(cfg),
		newAdminCommand(cfg),
		newTokenCommand(cfg),
	)

	return cmd
}

// loadConfig reads envFile when it exists, then the process environment, and initializes logging.
func loadConfig(envFile string) (*configs.AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment(), cfg.LogLevel)
	return cfg, nil
}

// openStore connects the configured store. Postgres pools are migrated on open.
func openStore(ctx context.Context, cfg *configs.AppConfig) (store.Store, error) {
	switch cfg.StoreDriver {
	case configs.StoreDriverMemory:
		logx.Warn("Using the in-memory store; state is lost on exit.")
		return memstore.New(), nil
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return db.NewPgStore(pool), nil
	}
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}
