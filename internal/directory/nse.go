package directory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ATHScanner/internal/model"
)

const DefaultNSEURL = "https://archives.nseindia.com/content/equities/EQUITY_L.csv"

// NSESource reads the NSE equity list CSV.
type NSESource struct {
	URL    string
	Client *http.Client
}

func NewNSESource(url string, client *http.Client) *NSESource {
	if url == "" {
		url = DefaultNSEURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &NSESource{URL: url, Client: client}
}

func (s *NSESource) Name() string { return "nse" }

func (s *NSESource) ListInstruments(ctx context.Context) ([]model.Instrument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "*/*")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: nse: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: nse: status %d", ErrUnavailable, resp.StatusCode)
	}
	return parseNSE(resp.Body)
}

func parseNSE(r io.Reader) ([]model.Instrument, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: nse: read header: %v", ErrUnavailable, err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	symCol, ok := col["SYMBOL"]
	if !ok {
		return nil, fmt.Errorf("%w: nse: no SYMBOL column", ErrUnavailable)
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []model.Instrument
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: nse: %v", ErrUnavailable, err)
		}
		if symCol >= len(rec) {
			continue
		}
		sym := strings.TrimSpace(rec[symCol])
		if sym == "" || sym == "SYMBOL" {
			continue
		}
		out = append(out, model.Instrument{
			ID:          sym + ".NS",
			DisplayName: field(rec, "NAME OF COMPANY"),
			Exchange:    "NSE",
			Class:       field(rec, "SERIES"),
		})
	}
	return out, nil
}
