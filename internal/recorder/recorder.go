package recorder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"ATHScanner/internal/model"
)

// Sink receives finished scan reports and progress updates.
type Sink interface {
	Publish(ctx context.Context, report *model.ScanReport) error
	UpdateProgress(p model.ScanProgress)
}

// Stock is one entry of the results document.
type Stock struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ATH      float64 `json:"ath"`
	Exchange string  `json:"exchange"`
	Series   string  `json:"series"`
}

// ResultsDocument is the JSON shape served to the dashboard.
type ResultsDocument struct {
	ScanID          string  `json:"scan_id,omitempty"`
	ScanDate        string  `json:"scan_date"`
	ScanTime        string  `json:"scan_time"`
	ScanDateTime    string  `json:"scan_datetime"`
	TotalScanned    int     `json:"total_scanned"`
	ATHCount        int     `json:"ath_count"`
	Source          string  `json:"source,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Stocks          []Stock `json:"stocks"`
}

// Round2 rounds a price to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// NewResultsDocument renders report in loc.
func NewResultsDocument(report *model.ScanReport, loc *time.Location) *ResultsDocument {
	if loc == nil {
		loc = time.UTC
	}
	at := report.ScanTimestamp.In(loc)
	doc := &ResultsDocument{
		ScanID:          report.ScanID,
		ScanDate:        at.Format("02 Jan 2006"),
		ScanTime:        at.Format("03:04 PM MST"),
		ScanDateTime:    at.Format(time.RFC3339),
		TotalScanned:    report.TotalScanned,
		ATHCount:        len(report.Matches),
		Source:          report.SourceLabel,
		DurationSeconds: Round2(report.Duration.Seconds()),
		Stocks:          make([]Stock, 0, len(report.Matches)),
	}
	for _, m := range report.Matches {
		doc.Stocks = append(doc.Stocks, Stock{
			Symbol:   m.InstrumentID,
			Name:     m.DisplayName,
			Price:    Round2(m.LatestPrice),
			ATH:      Round2(m.AllTimeHigh),
			Exchange: m.Exchange,
			Series:   m.Class,
		})
	}
	return doc
}

// Report converts the document back into a ScanReport. Prices keep their
// rounded values.
func (d *ResultsDocument) Report() (*model.ScanReport, error) {
	at, err := time.Parse(time.RFC3339, d.ScanDateTime)
	if err != nil {
		return nil, err
	}
	r := &model.ScanReport{
		ScanID:        d.ScanID,
		ScanTimestamp: at,
		TotalScanned:  d.TotalScanned,
		SourceLabel:   d.Source,
		Duration:      time.Duration(d.DurationSeconds * float64(time.Second)),
		Matches:       make([]model.MatchRecord, 0, len(d.Stocks)),
	}
	for _, s := range d.Stocks {
		r.Matches = append(r.Matches, model.MatchRecord{
			InstrumentID: s.Symbol,
			DisplayName:  s.Name,
			Exchange:     s.Exchange,
			Class:        s.Series,
			LatestPrice:  s.Price,
			AllTimeHigh:  s.ATH,
			EvaluatedAt:  at,
		})
	}
	return r, nil
}
