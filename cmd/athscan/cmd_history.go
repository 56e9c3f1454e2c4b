package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyFormat string
	historyScanID string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past scans from the scan history database",
	Long: `List past scans, newest first, or the matches of one scan.

Examples:
  athscan history --limit 10
  athscan history --scan 6f1c... --format json`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 30, "Number of scans to list")
	historyCmd.Flags().StringVar(&historyFormat, "format", "table", "Output format: table, json")
	historyCmd.Flags().StringVar(&historyScanID, "scan", "", "Show the matches of this scan")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := appFromConfig()
	if err != nil {
		return err
	}
	defer a.Close()
	if a.history == nil {
		return errors.New("scan history database is not configured")
	}
	ctx := context.Background()

	if historyScanID != "" {
		matches, err := a.history.Matches(ctx, historyScanID)
		if err != nil {
			return err
		}
		if historyFormat == "json" {
			return json.NewEncoder(os.Stdout).Encode(matches)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tNAME\tEXCHANGE\tPRICE\tATH")
		for _, m := range matches {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\n", m.InstrumentID, m.DisplayName, m.Exchange, m.LatestPrice, m.AllTimeHigh)
		}
		return w.Flush()
	}

	rows, err := a.history.History(ctx, historyLimit)
	if err != nil {
		return err
	}
	if historyFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(rows)
	}
	loc := a.cfg.Location()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCAN ID\tSCANNED AT\tSCANNED\tATH\tSOURCE\tDURATION")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", r.ScanID,
			time.Unix(r.ScannedAt, 0).In(loc).Format("02 Jan 2006 15:04"),
			r.TotalScanned, r.ATHCount, r.Source,
			(time.Duration(r.DurationMS) * time.Millisecond).Round(time.Second))
	}
	return w.Flush()
}
