package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"ATHScanner/internal/model"
)

// DefaultRestBars is roughly ten years of trading days.
const DefaultRestBars = 2500

// RestFetcher implements HistoryFetcher against a generic daily-bars REST API:
//
//	GET {base}/api/v1/bars/daily?symbol=X&limit=N -> [{timestamp, close}, ...]
//	GET {base}/api/v1/quote?symbol=X              -> {price}
type RestFetcher struct {
	BaseURL string
	APIKey  string
	Limit   int
	Client  *http.Client
}

// NewRestFetcher creates a new fetcher with optional proxy support.
func NewRestFetcher(baseURL, apiKey, proxyURL string, limit int) *RestFetcher {
	if limit <= 0 {
		limit = DefaultRestBars
	}
	return &RestFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Limit:   limit,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *RestFetcher) Name() string { return "rest" }

type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Close     float64 `json:"close"`
}

func (f *RestFetcher) FetchHistory(ctx context.Context, inst model.Instrument) (model.PriceSeries, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?symbol=%s&limit=%d", f.BaseURL, url.QueryEscape(inst.ID), f.Limit)
	body, err := f.get(ctx, inst.ID, endpoint)
	if err != nil {
		return model.PriceSeries{}, err
	}
	var bars []restBar
	if err := json.Unmarshal(body, &bars); err != nil {
		return model.PriceSeries{}, newFetchError(Malformed, inst.ID, fmt.Errorf("decode bars: %w", err))
	}
	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })

	series := model.PriceSeries{Closes: make([]float64, len(bars))}
	for i, b := range bars {
		series.Closes[i] = b.Close
	}

	// The quote is optional; the last close stands in when it is missing.
	if price, err := f.fetchQuote(ctx, inst.ID); err == nil {
		series.Latest = price
	}
	return series, nil
}

func (f *RestFetcher) fetchQuote(ctx context.Context, id string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s", f.BaseURL, url.QueryEscape(id))
	body, err := f.get(ctx, id, endpoint)
	if err != nil {
		return 0, err
	}
	var result struct {
		Price float64 `json:"price"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	return result.Price, nil
}

func (f *RestFetcher) get(ctx context.Context, id, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rest fetch: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rest read body: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, newFetchError(NotFound, id, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("rest fetch: status %d, body: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}
