package collector

import (
	"context"

	"ATHScanner/internal/model"
)

// HistoryFetcher loads the daily close history of one instrument.
// Implementations should return *FetchError for NotFound and Malformed
// responses; anything else is treated as transient by the Adapter.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, inst model.Instrument) (model.PriceSeries, error)
	Name() string
}
