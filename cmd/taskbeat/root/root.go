package root

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/taskbeat/taskbeat/internal/config"
	"github.com/taskbeat/taskbeat/internal/db"
	"github.com/taskbeat/taskbeat/internal/logging"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// RootCmd is the root of the taskbeat command tree. Subcommand packages
// attach themselves in their init functions.
var RootCmd = &cobra.Command{
	Use:   "taskbeat",
	Short: "One-shot dispatcher for scheduled agent tasks",
	Long: "taskbeat reads scheduled tasks from the database, dispatches the due ones\n" +
		"to the browser-automation agent API, records the outcome, and exits.\n" +
		"Run it from cron or a systemd timer.",
	SilenceUsage: true,
}

// GetRoot returns the root command.
func GetRoot() *cobra.Command {
	return RootCmd
}

// Bootstrap loads configuration and builds the process logger.
func Bootstrap() (config.Config, zerolog.Logger) {
	cfg := config.Load()
	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat)
}

// OpenDB connects to the configured database and reports the driver in use.
func OpenDB(cfg config.Config) (*sql.DB, string, error) {
	if cfg.DatabaseURL == "" {
		return nil, "", fmt.Errorf("DATABASE_URL is required")
	}
	return db.Connect(cfg.DatabaseURL)
}
