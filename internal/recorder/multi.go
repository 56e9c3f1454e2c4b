package recorder

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"ATHScanner/internal/logger"
	"ATHScanner/internal/model"
)

// Multi fans reports and progress out to several sinks. A failing sink is
// logged and never affects the others.
type Multi struct {
	sinks []Sink
	log   *logrus.Entry
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, log: logger.GetLogger().WithComponent("recorder")}
}

func (m *Multi) Add(s Sink) { m.sinks = append(m.sinks, s) }

func (m *Multi) Publish(ctx context.Context, report *model.ScanReport) error {
	for _, s := range m.sinks {
		if err := s.Publish(ctx, report); err != nil {
			m.log.WithField("sink", fmt.Sprintf("%T", s)).Errorf("publish failed: %v", err)
		}
	}
	return nil
}

func (m *Multi) UpdateProgress(p model.ScanProgress) {
	for _, s := range m.sinks {
		s.UpdateProgress(p)
	}
}
