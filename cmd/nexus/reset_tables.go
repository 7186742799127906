package main

import (
	"fmt"

	"github.com/leuf-systems/nexus/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

func newResetTablesCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset-tables",
		Short: "Drop and recreate every Nexus table from the migrations directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset-tables is destructive; pass --yes to confirm")
			}
			cfg, err := config.Load("")
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return resetTables(cfg)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the destructive reset")
	return cmd
}

func resetTables(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.Database.MigrationsPath, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("initializing migrator: %w", err)
	}
	defer m.Close()

	if err := m.Drop(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("dropping tables: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("applying migrations: %w", err)
	}
	fmt.Println("tables reset")
	return nil
}
