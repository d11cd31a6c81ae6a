package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/replaytrader/config"
	"github.com/rustyeddy/replaytrader/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "A historical replay futures trading simulator",
	Long: `Trader replays synthetic futures market data bar by bar and lets you
trade against it with a simulated margin account.

It provides tools for:
  - Generating seeded intraday and daily bars for a contract catalog
  - Replaying a session from a script of orders
  - Serving the replay over HTTP and WebSocket
  - Managing trade journals and equity curves

Complete documentation is available at https://github.com/rustyeddy/replaytrader`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON), defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level from the config")
}

// loadConfig reads --config or falls back to the defaults.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	return logger.New(level, cfg.Log.Pretty, os.Stderr)
}
