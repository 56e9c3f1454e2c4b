package scanner

import (
	"errors"
	"sort"
	"sync"
	"time"

	"ATHScanner/internal/model"
)

// ErrInvalidState is returned when the Assembler is used after Finalize.
var ErrInvalidState = errors.New("assembler already finalized")

// ReportHeader carries the scan-level fields of a report.
type ReportHeader struct {
	ScanID       string
	StartedAt    time.Time
	TotalScanned int
	SourceLabel  string
}

// Assembler collects match records from concurrent workers.
type Assembler struct {
	mu        sync.Mutex
	records   []model.MatchRecord
	finalized bool
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

func (a *Assembler) Add(r model.MatchRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return ErrInvalidState
	}
	a.records = append(a.records, r)
	return nil
}

// Finalize sorts the records by exchange then instrument ID and freezes
// the assembler.
func (a *Assembler) Finalize(h ReportHeader, at time.Time) (*model.ScanReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return nil, ErrInvalidState
	}
	a.finalized = true

	matches := make([]model.MatchRecord, len(a.records))
	copy(matches, a.records)
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Exchange != matches[j].Exchange {
			return matches[i].Exchange < matches[j].Exchange
		}
		return matches[i].InstrumentID < matches[j].InstrumentID
	})

	var dur time.Duration
	if !h.StartedAt.IsZero() {
		dur = at.Sub(h.StartedAt)
	}
	return &model.ScanReport{
		ScanID:        h.ScanID,
		ScanTimestamp: at,
		TotalScanned:  h.TotalScanned,
		Matches:       matches,
		SourceLabel:   h.SourceLabel,
		Duration:      dur,
	}, nil
}
