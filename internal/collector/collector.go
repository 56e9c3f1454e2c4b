package collector

import (
	"context"
	"sync"
	"time"

	"ATHScanner/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Instruments without an entry in Series get a generated gently rising
// history around Price.
type MockFetcher struct {
	Price  float64
	Days   int
	Delay  time.Duration
	Series map[string]model.PriceSeries
	Errors map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchHistory(ctx context.Context, inst model.Instrument) (model.PriceSeries, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[inst.ID]++
	m.mu.Unlock()

	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return model.PriceSeries{}, ctx.Err()
		}
	}
	if err, ok := m.Errors[inst.ID]; ok {
		return model.PriceSeries{}, err
	}
	if s, ok := m.Series[inst.ID]; ok {
		return model.PriceSeries{Closes: append([]float64(nil), s.Closes...), Latest: s.Latest, Name: s.Name}, nil
	}
	days := m.Days
	if days <= 0 {
		days = 250
	}
	price := m.Price
	if price <= 0 {
		price = 100
	}
	return model.PriceSeries{Closes: generateMockCloses(price, days)}, nil
}

// Calls reports how many times id was fetched.
func (m *MockFetcher) Calls(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id]
}

func generateMockCloses(basePrice float64, count int) []float64 {
	closes := make([]float64, count)
	for i := 0; i < count; i++ {
		closes[i] = basePrice * (1 + float64(i-count/2)*0.001)
	}
	return closes
}
