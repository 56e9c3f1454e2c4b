package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "Manage the cached instrument directory",
}

var symbolsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reload the NSE and BSE listings into the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromConfig()
		if err != nil {
			return err
		}
		defer a.Close()
		list, err := a.symbols.Refresh(context.Background())
		if err != nil {
			return fmt.Errorf("refresh symbols: %w", err)
		}
		fmt.Printf("Loaded %d symbols\n", len(list))
		return nil
	},
}

var symbolsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of instruments that will be scanned",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromConfig()
		if err != nil {
			return err
		}
		defer a.Close()
		n, cached, err := a.symbols.Count(context.Background())
		if err != nil {
			return err
		}
		src := "source"
		if cached {
			src = "cache"
		}
		fmt.Printf("%d symbols (%s)\n", n, src)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(symbolsCmd)
	symbolsCmd.AddCommand(symbolsRefreshCmd, symbolsCountCmd)
}

func appFromConfig() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}
