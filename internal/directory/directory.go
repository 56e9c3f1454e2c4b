package directory

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ATHScanner/internal/model"
)

var (
	// ErrUnavailable means no instrument list could be obtained.
	ErrUnavailable = errors.New("instrument directory unavailable")
	// ErrEmpty means the directory answered with zero instruments.
	ErrEmpty = errors.New("instrument directory empty")
)

// Provider lists the instruments to scan.
type Provider interface {
	ListInstruments(ctx context.Context) ([]model.Instrument, error)
}

// Static is a fixed instrument list.
type Static []model.Instrument

func (s Static) Name() string { return "static" }

func (s Static) ListInstruments(_ context.Context) ([]model.Instrument, error) {
	if len(s) == 0 {
		return nil, ErrEmpty
	}
	return append([]model.Instrument(nil), s...), nil
}

func nameOf(p Provider) string {
	if n, ok := p.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "provider"
}

// exchangeFor derives the exchange from a Yahoo-style suffix.
func exchangeFor(id string) string {
	switch {
	case strings.HasSuffix(id, ".NS"):
		return "NSE"
	case strings.HasSuffix(id, ".BO"):
		return "BSE"
	default:
		return ""
	}
}

// NewHTTPClient returns a client for the exchange listings, routed through
// proxyURL when set.
func NewHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: 60 * time.Second, Transport: transport}
}
