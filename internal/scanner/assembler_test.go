package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ATHScanner/internal/model"
)

func TestAssemblerCanonicalOrder(t *testing.T) {
	a := NewAssembler()
	for _, r := range []model.MatchRecord{
		{InstrumentID: "ZED.NS", Exchange: "NSE"},
		{InstrumentID: "ABC.NS", Exchange: "NSE"},
		{InstrumentID: "XYZ.BO", Exchange: "BSE"},
	} {
		require.NoError(t, a.Add(r))
	}

	start := time.Now().Add(-time.Minute)
	report, err := a.Finalize(ReportHeader{ScanID: "id", StartedAt: start, TotalScanned: 10, SourceLabel: "test"}, time.Now())
	require.NoError(t, err)

	ids := []string{}
	for _, m := range report.Matches {
		ids = append(ids, m.InstrumentID)
	}
	assert.Equal(t, []string{"XYZ.BO", "ABC.NS", "ZED.NS"}, ids)
	assert.Equal(t, 10, report.TotalScanned)
	assert.GreaterOrEqual(t, report.Duration, time.Minute)
}

func TestAssemblerInvalidStateAfterFinalize(t *testing.T) {
	a := NewAssembler()
	_, err := a.Finalize(ReportHeader{}, time.Now())
	require.NoError(t, err)

	_, err = a.Finalize(ReportHeader{}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, a.Add(model.MatchRecord{InstrumentID: "A"}), ErrInvalidState)
}
