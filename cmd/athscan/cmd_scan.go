package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ATHScanner/internal/model"
	"ATHScanner/internal/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan in the foreground and print the matches",
	Long: `Run a single synchronous scan over the instrument directory. Results are
stored and published like scheduled scans. Ctrl+C cancels the scan.

Examples:
  athscan scan
  athscan scan --concurrency 12 --threshold 0.95`,
	RunE: runScan,
}

var (
	scanConcurrency int
	scanThreshold   float64
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVar(&scanConcurrency, "concurrency", 0, "Parallel fetches (overrides scan.concurrency)")
	scanCmd.Flags().Float64Var(&scanThreshold, "threshold", 0, "Match ratio to the all-time high (overrides scan.threshold_ratio)")
}

// progressLine redraws one status line on a terminal.
type progressLine struct{}

func (p progressLine) Publish(context.Context, *model.ScanReport) error { return nil }

func (p progressLine) UpdateProgress(s model.ScanProgress) {
	fmt.Fprintf(os.Stderr, "\r\033[K%s | ATH found: %d", s.Message, s.Matched)
	if !s.Running {
		fmt.Fprintln(os.Stderr)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if scanConcurrency != 0 {
		cfg.Scan.Concurrency = scanConcurrency
	}
	if scanThreshold != 0 {
		cfg.Scan.ThresholdRatio = scanThreshold
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if term.IsTerminal(int(os.Stderr.Fd())) {
		a.sinks.Add(progressLine{})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch, err := a.newOrchestrator(ctx)
	if err != nil {
		return err
	}
	report, err := orch.Run(ctx)
	if errors.Is(err, scanner.ErrCancelled) {
		fmt.Fprintf(os.Stderr, "Scan cancelled; %d matches among %d scanned (not saved)\n", len(report.Matches), report.TotalScanned)
		return nil
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNAME\tEXCHANGE\tPRICE\tATH")
	for _, m := range report.Matches {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\n", m.InstrumentID, m.DisplayName, m.Exchange, m.LatestPrice, m.AllTimeHigh)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d ATH stocks out of %d scanned in %s\n", len(report.Matches), report.TotalScanned, report.Duration.Round(time.Second))
	return nil
}
