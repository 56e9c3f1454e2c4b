package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ATHScanner/internal/model"
)

// FileStore keeps the latest results document as a JSON file.
type FileStore struct {
	path string
	loc  *time.Location
	mu   sync.RWMutex
}

func NewFileStore(path string, loc *time.Location) *FileStore {
	return &FileStore{path: path, loc: loc}
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Publish(_ context.Context, report *model.ScanReport) error {
	data, err := json.MarshalIndent(NewResultsDocument(report, f.loc), "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := writeFileAtomic(f.path, data); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func (f *FileStore) UpdateProgress(_ model.ScanProgress) {}

// Latest returns the stored document, or nil when no scan has been saved.
func (f *FileStore) Latest() (*ResultsDocument, error) {
	f.mu.RLock()
	data, err := os.ReadFile(f.path)
	f.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc ResultsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return &doc, nil
}

// LatestReport is Latest converted to a ScanReport.
func (f *FileStore) LatestReport() (*model.ScanReport, error) {
	doc, err := f.Latest()
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Report()
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
