package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ATHScanner/internal/model"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func sampleReport(id string, at time.Time) *model.ScanReport {
	return &model.ScanReport{
		ScanID:        id,
		ScanTimestamp: at,
		TotalScanned:  2100,
		SourceLabel:   "yahoo",
		Duration:      95 * time.Second,
		Matches: []model.MatchRecord{
			{InstrumentID: "XYZ.BO", DisplayName: "Xyz Ltd", Exchange: "BSE", Class: "EQ", LatestPrice: 101.456, AllTimeHigh: 102.004, EvaluatedAt: at},
			{InstrumentID: "ACME.NS", DisplayName: "Acme", Exchange: "NSE", Class: "EQ", LatestPrice: 15, AllTimeHigh: 15, EvaluatedAt: at},
		},
	}
}

func TestResultsDocument(t *testing.T) {
	at := time.Date(2026, 3, 2, 10, 1, 0, 0, time.UTC)
	doc := NewResultsDocument(sampleReport("s1", at), ist)

	assert.Equal(t, "02 Mar 2026", doc.ScanDate)
	assert.Equal(t, "03:31 PM IST", doc.ScanTime)
	assert.Equal(t, "2026-03-02T15:31:00+05:30", doc.ScanDateTime)
	assert.Equal(t, 2100, doc.TotalScanned)
	assert.Equal(t, 2, doc.ATHCount)
	assert.Equal(t, 101.46, doc.Stocks[0].Price)
	assert.Equal(t, 102.0, doc.Stocks[0].ATH)
	assert.Equal(t, "BSE", doc.Stocks[0].Exchange)

	back, err := doc.Report()
	require.NoError(t, err)
	assert.True(t, back.ScanTimestamp.Equal(at))
	assert.Equal(t, "s1", back.ScanID)
	assert.Equal(t, 95*time.Second, back.Duration)
	require.Len(t, back.Matches, 2)
	assert.Equal(t, "XYZ.BO", back.Matches[0].InstrumentID)
}

func TestFileStore(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "data", "ath_results.json"), ist)

	doc, err := store.Latest()
	require.NoError(t, err)
	assert.Nil(t, doc)

	at := time.Date(2026, 3, 2, 10, 1, 0, 0, time.UTC)
	require.NoError(t, store.Publish(context.Background(), sampleReport("s1", at)))
	require.NoError(t, store.Publish(context.Background(), sampleReport("s2", at.Add(24*time.Hour))))

	doc, err = store.Latest()
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "s2", doc.ScanID)
	assert.Equal(t, "03 Mar 2026", doc.ScanDate)

	report, err := store.LatestReport()
	require.NoError(t, err)
	assert.Len(t, report.Matches, 2)
}

func TestSQLStore(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLStore("sqlite", filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	at := time.Date(2026, 3, 2, 10, 1, 0, 0, time.UTC)
	require.NoError(t, store.Publish(ctx, sampleReport("s1", at)))
	require.NoError(t, store.Publish(ctx, sampleReport("s2", at.Add(24*time.Hour))))
	require.NoError(t, store.Publish(ctx, &model.ScanReport{ScanID: "s3", ScanTimestamp: at.Add(48 * time.Hour)}))

	history, err := store.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "s3", history[0].ScanID)
	assert.Equal(t, 0, history[0].ATHCount)
	assert.Equal(t, "s2", history[1].ScanID)
	assert.Equal(t, 2, history[1].ATHCount)
	assert.Equal(t, int64(95000), history[1].DurationMS)

	matches, err := store.Matches(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "XYZ.BO", matches[0].InstrumentID)
	assert.Equal(t, 101.456, matches[0].LatestPrice)

	// Same scan twice violates the primary key and rolls back.
	assert.Error(t, store.Publish(ctx, sampleReport("s1", at)))
	matches, err = store.Matches(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestOpenSQLStoreRejectsUnknownDriver(t *testing.T) {
	_, err := OpenSQLStore("mysql", "x")
	assert.Error(t, err)
}

type countingSink struct {
	published int
	progress  int
	err       error
}

func (c *countingSink) Publish(context.Context, *model.ScanReport) error {
	c.published++
	return c.err
}

func (c *countingSink) UpdateProgress(model.ScanProgress) { c.progress++ }

func TestMultiIsolatesFailures(t *testing.T) {
	bad := &countingSink{err: errors.New("telegram down")}
	good := &countingSink{}
	m := NewMulti(bad, good, NewNoopSink())

	assert.NoError(t, m.Publish(context.Background(), sampleReport("s1", time.Now())))
	m.UpdateProgress(model.ScanProgress{})

	assert.Equal(t, 1, bad.published)
	assert.Equal(t, 1, good.published)
	assert.Equal(t, 1, good.progress)
}
