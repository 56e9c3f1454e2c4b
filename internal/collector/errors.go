package collector

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sony/gobreaker"
)

// ErrorKind classifies a failed history fetch.
type ErrorKind int

const (
	// NotFound: the upstream does not know the instrument. Expected.
	NotFound ErrorKind = iota + 1
	Timeout
	Transient
	Malformed
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Timeout:
		return "timeout"
	case Transient:
		return "transient"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// FetchError is the only error type returned by Adapter.Fetch.
type FetchError struct {
	Kind         ErrorKind
	InstrumentID string
	Err          error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.InstrumentID, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.InstrumentID, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Expected reports whether the failure is a normal per-instrument outcome
// rather than an upstream problem.
func (e *FetchError) Expected() bool { return e.Kind == NotFound }

func newFetchError(kind ErrorKind, id string, err error) *FetchError {
	return &FetchError{Kind: kind, InstrumentID: id, Err: err}
}

// KindOf returns the kind of a fetch error, or 0 when err is not one.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// normalize maps any error from a provider, the breaker or the context
// onto a *FetchError.
func normalize(err error, id string) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.InstrumentID == "" {
			return newFetchError(fe.Kind, id, fe.Err)
		}
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newFetchError(Timeout, id, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return newFetchError(Timeout, id, err)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return newFetchError(Transient, id, fmt.Errorf("upstream circuit open: %w", err))
	}
	return newFetchError(Transient, id, err)
}
