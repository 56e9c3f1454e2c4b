package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ATHScanner/internal/collector"
	"ATHScanner/internal/model"
)

// DefaultETAEvery is how many completions pass between ETA updates.
const DefaultETAEvery = 100

// Progress aggregates per-instrument completions into a ScanProgress.
// All methods are safe for concurrent use; Snapshot always returns a
// consistent copy.
type Progress struct {
	mu       sync.Mutex
	p        model.ScanProgress
	etaEvery int
	frozen   bool
	now      func() time.Time
}

func NewProgress(etaEvery int) *Progress {
	if etaEvery <= 0 {
		etaEvery = DefaultETAEvery
	}
	return &Progress{
		etaEvery: etaEvery,
		frozen:   true,
		now:      time.Now,
		p:        model.ScanProgress{Message: "Idle"},
	}
}

// Prepare resets the aggregator for a new scan whose size is not known yet.
func (p *Progress) Prepare(scanID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	start := p.now()
	p.p = model.ScanProgress{
		ScanID:    scanID,
		Running:   true,
		Message:   "Starting scan...",
		StartedAt: &start,
	}
	p.frozen = false
}

// Begin records the number of instruments that will be scanned.
func (p *Progress) Begin(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen {
		return
	}
	p.p.Total = total
	p.p.Message = scanningMessage(0, total)
}

// Report counts one completed instrument and reports whether the
// completion is a milestone (every etaEvery completions and the last one).
func (p *Progress) Report(out model.Outcome) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen || p.p.Processed >= p.p.Total {
		return false
	}
	p.p.Processed++
	if out.Kind == model.Match {
		p.p.Matched++
	}
	// Fetches cut short by cancellation are not upstream failures.
	var fe *collector.FetchError
	if out.Err != nil && !errors.Is(out.Err, context.Canceled) && (!errors.As(out.Err, &fe) || !fe.Expected()) {
		p.p.Failed++
	}
	p.p.Message = scanningMessage(p.p.Processed, p.p.Total)

	milestone := p.p.Processed%p.etaEvery == 0 || p.p.Processed == p.p.Total
	if milestone && p.p.StartedAt != nil {
		elapsed := p.now().Sub(*p.p.StartedAt)
		if elapsed > 0 {
			perItem := elapsed / time.Duration(p.p.Processed)
			p.p.ETA = perItem * time.Duration(p.p.Total-p.p.Processed)
		}
	}
	return milestone
}

// Finish freezes a successful scan.
func (p *Progress) Finish() {
	p.freeze(func(s *model.ScanProgress) {
		s.Message = fmt.Sprintf("Scan complete! Found %d ATH stocks.", s.Matched)
		s.ETA = 0
	})
}

// Fail freezes a scan that could not run.
func (p *Progress) Fail(err error) {
	p.freeze(func(s *model.ScanProgress) {
		s.Message = fmt.Sprintf("Scan failed: %v", err)
	})
}

// Cancel freezes a scan stopped before completion.
func (p *Progress) Cancel() {
	p.freeze(func(s *model.ScanProgress) {
		s.Message = fmt.Sprintf("Scan cancelled after %d/%d stocks", s.Processed, s.Total)
		s.ETA = 0
	})
}

func (p *Progress) freeze(update func(*model.ScanProgress)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen {
		return
	}
	update(&p.p)
	end := p.now()
	p.p.FinishedAt = &end
	p.p.Running = false
	p.frozen = true
}

// Snapshot returns a copy that shares no memory with the aggregator.
func (p *Progress) Snapshot() model.ScanProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.p
	if s.StartedAt != nil {
		t := *s.StartedAt
		s.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		s.FinishedAt = &t
	}
	return s
}

func scanningMessage(done, total int) string {
	return fmt.Sprintf("Scanning... %d/%d stocks", done, total)
}
