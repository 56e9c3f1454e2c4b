package directory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ATHScanner/internal/model"
)

// FileSource reads a static instrument list from a YAML or JSON file.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) ListInstruments(_ context.Context) ([]model.Instrument, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// yaml.v3 reads JSON documents as well.
	var list []model.Instrument
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrUnavailable, s.Path, err)
	}
	out := list[:0]
	for _, inst := range list {
		if inst.ID == "" {
			continue
		}
		if inst.Exchange == "" {
			inst.Exchange = exchangeFor(inst.ID)
		}
		out = append(out, inst)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}
