// Package main provides the leadmap CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gameleadership/leadmap/internal/config"
	"github.com/gameleadership/leadmap/internal/logging"
	"github.com/gameleadership/leadmap/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	configPath  string
	logLevel    string

	cfg    *config.Config
	logger zerolog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "leadmap",
	Short: "Research institution directory for the game leadership map",
	Long: `leadmap maintains the research institution directory behind the game
leadership map.

Core features:
  - Reconciliation of DBLP papers, institution geodata and OpenAlex authorships
  - Institution markers and community markers for the map
  - Institution and submitter search with per-IP rate limits
  - Community submissions with geocoding and moderation

Data lives in SQLite by default or PostgreSQL when DATABASE_URL is a
postgres:// URL. All commands output JSON by default.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/leadmap/config.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.Version = Version
}

// setup loads .env, the config file and the logger before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	logCfg := logging.ConfigFromEnv()
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	logger = logging.New(os.Stderr, logCfg)

	loaded, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if err := loaded.Validate(); err != nil {
		exitWithError(ExitConfigError, "invalid config: %v", err)
	}
	cfg = loaded
	return nil
}

// prepareDSN creates the parent directory of a SQLite database file.
func prepareDSN(dsn string) error {
	dialect, source := storage.ParseDSN(dsn)
	if dialect != storage.SQLite || source == "" || source == ":memory:" {
		return nil
	}
	if dir := filepath.Dir(source); dir != "." {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// mustOpenStore opens the configured database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenStore(ctx context.Context) *storage.DB {
	dsn := cfg.DSN()
	if err := prepareDSN(dsn); err != nil {
		exitWithError(ExitError, "preparing database directory: %v", err)
	}
	db, err := storage.Open(ctx, dsn)
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}

// mustOpenSupervisor opens a reconnecting store for long-running passes.
// The caller is responsible for calling Close() on the returned Supervisor.
func mustOpenSupervisor(ctx context.Context) *storage.Supervisor {
	dsn := cfg.DSN()
	if err := prepareDSN(dsn); err != nil {
		exitWithError(ExitError, "preparing database directory: %v", err)
	}
	sup, err := storage.NewSupervisor(ctx, storage.DSNOpener(dsn), storage.WithLogger(logger))
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return sup
}
