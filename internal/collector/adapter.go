package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"ATHScanner/internal/logger"
	"ATHScanner/internal/model"
)

// DefaultTimeout bounds a single history fetch.
const DefaultTimeout = 20 * time.Second

// Observer receives one call per finished fetch. kind is "ok" or an
// ErrorKind string.
type Observer interface {
	ObserveFetch(kind string, elapsed time.Duration)
}

// BreakerSettings configures the circuit breaker around the upstream.
// A zero ConsecutiveFailures disables the breaker.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

// Adapter turns a HistoryFetcher into a bounded, typed-error fetch.
type Adapter struct {
	fetcher  HistoryFetcher
	timeout  time.Duration
	breaker  *gobreaker.CircuitBreaker
	observer Observer
	log      *logrus.Entry
}

type AdapterOption func(*Adapter)

func WithBreaker(s BreakerSettings) AdapterOption {
	return func(a *Adapter) {
		if s.ConsecutiveFailures == 0 {
			return
		}
		a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        a.fetcher.Name(),
			MaxRequests: s.HalfOpenRequests,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= s.ConsecutiveFailures
			},
			// Unknown instruments, bad payloads and our own cancellation say
			// nothing about upstream health.
			IsSuccessful: func(err error) bool {
				if err == nil || errors.Is(err, context.Canceled) {
					return true
				}
				switch KindOf(err) {
				case NotFound, Malformed:
					return true
				}
				return false
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				a.log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).
					Warnf("circuit breaker %s changed state", name)
			},
		})
	}
}

func WithObserver(o Observer) AdapterOption {
	return func(a *Adapter) { a.observer = o }
}

func WithLogger(entry *logrus.Entry) AdapterOption {
	return func(a *Adapter) { a.log = entry }
}

// NewAdapter wraps fetcher. A non-positive timeout means DefaultTimeout.
func NewAdapter(fetcher HistoryFetcher, timeout time.Duration, opts ...AdapterOption) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	a := &Adapter{
		fetcher: fetcher,
		timeout: timeout,
		log:     logger.GetLogger().WithComponent("collector"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return a.fetcher.Name() }

// Fetch returns the instrument's history or a *FetchError. It returns no
// later than the configured timeout even if the provider ignores ctx.
func (a *Adapter) Fetch(ctx context.Context, inst model.Instrument) (model.PriceSeries, error) {
	start := time.Now()
	series, err := a.fetch(ctx, inst)
	kind := "ok"
	if err != nil {
		fe := normalize(err, inst.ID)
		kind = fe.Kind.String()
		err = fe
		a.log.WithFields(logrus.Fields{"symbol": inst.ID, "kind": kind}).Debugf("skip: %v", fe.Err)
	}
	if a.observer != nil {
		a.observer.ObserveFetch(kind, time.Since(start))
	}
	return series, err
}

func (a *Adapter) fetch(ctx context.Context, inst model.Instrument) (model.PriceSeries, error) {
	if a.breaker == nil {
		return a.call(ctx, inst)
	}
	v, err := a.breaker.Execute(func() (interface{}, error) {
		return a.call(ctx, inst)
	})
	if err != nil {
		return model.PriceSeries{}, err
	}
	return v.(model.PriceSeries), nil
}

type fetchResult struct {
	series model.PriceSeries
	err    error
}

func (a *Adapter) call(ctx context.Context, inst model.Instrument) (model.PriceSeries, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: newFetchError(Transient, inst.ID, fmt.Errorf("%s panic: %v", a.fetcher.Name(), r))}
			}
		}()
		s, err := a.fetcher.FetchHistory(ctx, inst)
		done <- fetchResult{s, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil {
			return model.PriceSeries{}, fmt.Errorf("%s: %w", a.fetcher.Name(), ctx.Err())
		}
		return r.series, r.err
	case <-ctx.Done():
		return model.PriceSeries{}, fmt.Errorf("%s: %w", a.fetcher.Name(), ctx.Err())
	}
}
