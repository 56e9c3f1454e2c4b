package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ATHScanner/internal/model"
)

const DefaultBSEURL = "https://api.bseindia.com/BseIndiaAPI/api/getScripData/w?strCat=-1&strPrevClose=&strSector=&strIndex=0&strstart=0&strEnd=&strstock="

// BSESource reads the BSE scrip list JSON.
type BSESource struct {
	URL    string
	Client *http.Client
}

func NewBSESource(url string, client *http.Client) *BSESource {
	if url == "" {
		url = DefaultBSEURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &BSESource{URL: url, Client: client}
}

func (s *BSESource) Name() string { return "bse" }

type bseScrips struct {
	Table []struct {
		ShortName string `json:"short_name"`
		LongName  string `json:"LONGNAME"`
	} `json:"Table"`
}

func (s *BSESource) ListInstruments(ctx context.Context) ([]model.Instrument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: bse: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: bse: status %d", ErrUnavailable, resp.StatusCode)
	}

	var data bseScrips
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: bse decode: %v", ErrUnavailable, err)
	}
	out := make([]model.Instrument, 0, len(data.Table))
	for _, item := range data.Table {
		scrip := strings.TrimSpace(item.ShortName)
		if scrip == "" {
			continue
		}
		out = append(out, model.Instrument{
			ID:          scrip + ".BO",
			DisplayName: strings.TrimSpace(item.LongName),
			Exchange:    "BSE",
			Class:       "EQ",
		})
	}
	return out, nil
}
