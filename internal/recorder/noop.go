package recorder

import (
	"context"

	"ATHScanner/internal/model"
)

// NoopSink is used when no storage is configured.
type NoopSink struct{}

func NewNoopSink() *NoopSink { return &NoopSink{} }

func (n *NoopSink) Publish(_ context.Context, _ *model.ScanReport) error { return nil }
func (n *NoopSink) UpdateProgress(_ model.ScanProgress)                  {}
func (n *NoopSink) Close() error                                         { return nil }
