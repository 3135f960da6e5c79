// Glow - Car Garage CRM dashboard
package main

import (
	"fmt"
	"os"

	"github.com/aethra/glow/internal/app"
	"github.com/aethra/glow/internal/config"
	"github.com/aethra/glow/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "glow",
	Short: "Glow is a config-driven CRM dashboard for a car garage",
	Long: `Glow renders entity lists (leads, customers, services, work orders...)
from a module schema, backed by a portal API, a database or generated data.

Configuration comes from the YAML file given with --config, then GLOW_*
environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       app.Version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, modulesCmd, queryCmd)
}

// setup loads the configuration and builds the logger every command uses.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr).
		With().Str("service", "glow").Logger()
	return cfg, logger, nil
}
