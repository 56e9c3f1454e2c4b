package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ATHScanner/internal/model"
)

func TestRegistryTracksScan(t *testing.T) {
	r := New()

	r.UpdateProgress(model.ScanProgress{Running: true, Total: 10, Processed: 4, Matched: 1, Failed: 2})
	assert.Equal(t, 1.0, testutil.ToFloat64(r.running))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.processed))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.failed))

	r.ObserveFetch("ok", 120*time.Millisecond)
	r.ObserveFetch("ok", 80*time.Millisecond)
	r.ObserveFetch("timeout", 20*time.Second)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.fetches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetches.WithLabelValues("timeout")))

	require.NoError(t, r.Publish(context.Background(), &model.ScanReport{
		ScanTimestamp: time.Unix(1700000000, 0),
		Duration:      time.Minute,
		Matches:       make([]model.MatchRecord, 3),
	}))
	r.UpdateProgress(model.ScanProgress{Total: 10, Processed: 10})
	assert.Equal(t, 0.0, testutil.ToFloat64(r.running))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.lastMatches))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.scans))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(r.lastScanTime))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ObserveFetch("not_found", time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `athscan_fetch_total{outcome="not_found"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
