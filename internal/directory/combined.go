package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"ATHScanner/internal/logger"
	"ATHScanner/internal/model"
)

// Combined merges several providers. A failing provider is logged and
// skipped; only when every provider fails is ErrUnavailable returned.
// Duplicate IDs keep the first occurrence.
type Combined struct {
	Sources []Provider
	log     *logrus.Entry
}

func NewCombined(sources ...Provider) *Combined {
	return &Combined{Sources: sources, log: logger.GetLogger().WithComponent("directory")}
}

func (c *Combined) Name() string { return "combined" }

func (c *Combined) ListInstruments(ctx context.Context) ([]model.Instrument, error) {
	var (
		out    []model.Instrument
		errs   []error
		failed int
		seen   = make(map[string]bool)
	)
	for _, src := range c.Sources {
		list, err := src.ListInstruments(ctx)
		if err != nil && !errors.Is(err, ErrEmpty) {
			failed++
			errs = append(errs, err)
			c.log.WithField("source", nameOf(src)).Errorf("fetch error: %v", err)
			continue
		}
		c.log.WithField("source", nameOf(src)).Infof("%d symbols fetched", len(list))
		for _, inst := range list {
			if seen[inst.ID] {
				continue
			}
			seen[inst.ID] = true
			out = append(out, inst)
		}
	}
	if len(c.Sources) > 0 && failed == len(c.Sources) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}
