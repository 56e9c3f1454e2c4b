package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ATHScanner/internal/model"
)

const (
	DefaultYahooBaseURL = "https://query1.finance.yahoo.com"
	DefaultHistoryRange = "10y"
)

// YahooFetcher implements HistoryFetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL string
	Range   string // chart range, e.g. "10y", "max", "1y"
	Client  *http.Client
}

// NewYahooFetcher creates a new Yahoo Finance fetcher with optional proxy support.
func NewYahooFetcher(historyRange, proxyURL string) *YahooFetcher {
	if historyRange == "" {
		historyRange = DefaultHistoryRange
	}
	return &YahooFetcher{
		BaseURL: DefaultYahooBaseURL,
		Range:   historyRange,
		Client:  newHTTPClient(proxyURL),
	}
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 64,
		IdleConnTimeout:     90 * time.Second,
	}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				LongName           string  `json:"longName"`
				ShortName          string  `json:"shortName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []interface{} `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func (f *YahooFetcher) FetchHistory(ctx context.Context, inst model.Instrument) (model.PriceSeries, error) {
	base := f.BaseURL
	if base == "" {
		base = DefaultYahooBaseURL
	}
	rng := f.Range
	if rng == "" {
		rng = DefaultHistoryRange
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s",
		strings.TrimRight(base, "/"), url.PathEscape(inst.ID), url.QueryEscape(rng))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.PriceSeries{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")

	resp, err := f.Client.Do(req)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("yahoo read body: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusUnprocessableEntity:
		return model.PriceSeries{}, newFetchError(NotFound, inst.ID, fmt.Errorf("yahoo: status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return model.PriceSeries{}, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, truncate(body, 200))
	}

	return parseChart(inst.ID, body)
}

func parseChart(id string, body []byte) (model.PriceSeries, error) {
	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return model.PriceSeries{}, newFetchError(Malformed, id, fmt.Errorf("yahoo decode: %w", err))
	}
	if e := chart.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return model.PriceSeries{}, newFetchError(NotFound, id, errors.New(e.Description))
		}
		return model.PriceSeries{}, fmt.Errorf("yahoo api error: %s", e.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return model.PriceSeries{}, newFetchError(NotFound, id, errors.New("yahoo: no data returned"))
	}

	result := chart.Chart.Result[0]
	series := model.PriceSeries{
		Latest: result.Meta.RegularMarketPrice,
		Name:   result.Meta.LongName,
	}
	if series.Name == "" {
		series.Name = result.Meta.ShortName
	}
	if len(result.Indicators.Quote) == 0 {
		return series, nil
	}
	closes := result.Indicators.Quote[0].Close
	series.Closes = make([]float64, 0, len(closes))
	for _, v := range closes {
		if c := toFloat(v); c > 0 {
			series.Closes = append(series.Closes, c) // nulls are holidays
		}
	}
	return series, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
