package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ATHScanner/internal/model"
)

func price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatReport formats a finished scan for Telegram. At most maxListed
// matches are listed.
func FormatReport(r *model.ScanReport, loc *time.Location, maxListed int) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>ATH Scanner</b> | %s\n\n", r.ScanTimestamp.In(loc).Format("02 Jan 2006 03:04 PM MST")))
	b.WriteString(fmt.Sprintf("Scanned: %d | At ATH: %d | Took: %s\n", r.TotalScanned, len(r.Matches), r.Duration.Round(time.Second)))

	if len(r.Matches) == 0 {
		b.WriteString("\nNo stocks at their all-time high today.\n")
		return b.String()
	}
	b.WriteString("\n")
	for i, m := range r.Matches {
		if maxListed > 0 && i == maxListed {
			b.WriteString(fmt.Sprintf("…and %d more\n", len(r.Matches)-maxListed))
			break
		}
		b.WriteString(fmt.Sprintf("• <b>%s</b> %s ₹%s (ATH ₹%s)\n",
			html.EscapeString(m.InstrumentID), html.EscapeString(m.DisplayName), price(m.LatestPrice), price(m.AllTimeHigh)))
	}
	return b.String()
}

// FormatProgress formats the scan status for the /status command.
func FormatProgress(p model.ScanProgress) string {
	var b strings.Builder
	if p.Running {
		b.WriteString("🔄 <b>Scan running</b>\n\n")
	} else {
		b.WriteString("⏸ <b>Scanner idle</b>\n\n")
	}
	b.WriteString(html.EscapeString(p.Message) + "\n")
	if p.Total > 0 {
		b.WriteString(fmt.Sprintf("Progress: %d/%d | Found: %d | Failed: %d\n", p.Processed, p.Total, p.Matched, p.Failed))
	}
	if p.Running && p.ETA > 0 {
		b.WriteString(fmt.Sprintf("ETA: %s\n", p.ETA.Round(time.Second)))
	}
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "<b>ATH Scanner commands</b>\n\n" +
		"/scan - start a scan now\n" +
		"/status - current scan progress\n" +
		"/results - latest results\n" +
		"/cancel - stop the running scan\n" +
		"/help - this message"
}
