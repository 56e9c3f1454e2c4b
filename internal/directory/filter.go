package directory

import (
	"context"

	"ATHScanner/internal/model"
)

// DefaultEquityClasses are the NSE series treated as equities.
var DefaultEquityClasses = []string{"EQ", "BE", "BZ", "SM", "ST", "N", "W", "M", ""}

// ClassFilter keeps instruments whose class is listed or whose exchange
// is exempt.
type ClassFilter struct {
	Provider Provider
	Classes  map[string]bool
	Exempt   map[string]bool
}

func NewClassFilter(p Provider, classes []string, exemptExchanges []string) *ClassFilter {
	f := &ClassFilter{Provider: p, Classes: map[string]bool{}, Exempt: map[string]bool{}}
	for _, c := range classes {
		f.Classes[c] = true
	}
	for _, e := range exemptExchanges {
		f.Exempt[e] = true
	}
	return f
}

func (f *ClassFilter) Name() string { return nameOf(f.Provider) }

func (f *ClassFilter) ListInstruments(ctx context.Context) ([]model.Instrument, error) {
	list, err := f.Provider.ListInstruments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Instrument, 0, len(list))
	for _, inst := range list {
		if f.Classes[inst.Class] || f.Exempt[inst.Exchange] {
			out = append(out, inst)
		}
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}
