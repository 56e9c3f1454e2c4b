package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ATHScanner/internal/config"
	"ATHScanner/internal/logger"
)

var configPath string

// rootCmd is the base command for the ATH scanner CLI
var rootCmd = &cobra.Command{
	Use:   "athscan",
	Short: "All-time-high scanner for NSE and BSE equities",
	Long: `athscan scans every listed NSE and BSE equity and reports the ones trading
at or near their all-time high.

Run 'athscan serve' for the scheduled service with its HTTP API, or
'athscan scan' for a one-off scan in the foreground.`,
	SilenceUsage: true,
}

func init() {
	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultPath, "Path to the YAML config file")
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the config and configures logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	l := cfg.Logging
	if err := logger.GetLogger().Configure(l.Level, l.Format, l.Output, l.MaxAgeDays); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return cfg, nil
}
