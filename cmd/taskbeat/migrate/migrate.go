// Package migrate implements the schema migration command.
package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskbeat/taskbeat/cmd/taskbeat/root"
	"github.com/taskbeat/taskbeat/internal/db"
)

func init() {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}
	root.RootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log := root.Bootstrap()
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}
	log.Info().Str("driver", db.DriverFor(cfg.DatabaseURL)).Msg("migrations applied")
	fmt.Println("migrations applied")
	return nil
}
