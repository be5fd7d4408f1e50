// Command scout serves schema-agnostic search over a relational database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/koustreak/scout/internal/config"
	"github.com/koustreak/scout/internal/logger"
	"github.com/koustreak/scout/internal/search"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	driverFlag string
	dsnFlag    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "scout",
	Short:         "Search any relational database without an index",
	Long:          `Scout introspects a SQLite, PostgreSQL or MySQL database, classifies its columns and answers document-search style queries over it.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "Database driver: sqlite, postgres or mysql (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "Database DSN or SQLite file path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(serveCmd(), schemaCmd(), searchCmd())
}

// loadConfig reads the config file and environment, then applies the
// command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if driverFlag != "" {
		cfg.Database.Driver = driverFlag
	}
	if dsnFlag != "" {
		cfg.Database.DSN = dsnFlag
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, cfg.Validate()
}

// openEngine connects to the configured database and loads its catalog.
func openEngine(ctx context.Context, cfg *config.Config, log *logger.Logger) (*search.Engine, error) {
	return search.Open(ctx, cfg.DatabaseConfig(), log)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
