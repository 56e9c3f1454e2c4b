package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"ATHScanner/internal/collector"
	"ATHScanner/internal/model"
)

const (
	DefaultConcurrency = 6
	MaxConcurrency     = 64
	DefaultPacing      = 100 * time.Millisecond
)

var ErrInvalidConcurrency = errors.New("concurrency must be between 1 and 64")

// Task evaluates one instrument.
type Task func(ctx context.Context, inst model.Instrument) model.Outcome

// CompleteFunc is called once per submitted instrument, from worker goroutines.
type CompleteFunc func(inst model.Instrument, out model.Outcome)

// Pool runs a Task over a list of instruments with at most size in flight.
type Pool struct {
	size   int
	pacing time.Duration
}

// NewPool validates size; pacing is the minimum gap between submissions,
// zero disables it.
func NewPool(size int, pacing time.Duration) (*Pool, error) {
	if size < 1 || size > MaxConcurrency {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, size)
	}
	return &Pool{size: size, pacing: pacing}, nil
}

func (p *Pool) Size() int { return p.size }

// RunAll submits instruments in order until the list is exhausted or ctx is
// done, then waits for every submitted task to complete. It returns the
// number of instruments submitted; onComplete has been called exactly that
// many times when RunAll returns.
func (p *Pool) RunAll(ctx context.Context, instruments []model.Instrument, task Task, onComplete CompleteFunc) int {
	jobs := make(chan model.Instrument)

	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for inst := range jobs {
				onComplete(inst, runSafe(ctx, task, inst))
			}
		}()
	}

	var limiter *rate.Limiter
	if p.pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(p.pacing), 1)
	}

	submitted := 0
feed:
	for _, inst := range instruments {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- inst:
			submitted++
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return submitted
}

func runSafe(ctx context.Context, task Task, inst model.Instrument) (out model.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = model.Outcome{
				Kind: model.NoMatch,
				Err: &collector.FetchError{
					Kind:         collector.Transient,
					InstrumentID: inst.ID,
					Err:          fmt.Errorf("panic: %v", r),
				},
			}
		}
	}()
	return task(ctx, inst)
}
