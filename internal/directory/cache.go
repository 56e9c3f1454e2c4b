package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"ATHScanner/internal/logger"
	"ATHScanner/internal/model"
)

// DefaultMaxAge is how long a cached instrument list stays fresh.
const DefaultMaxAge = 7 * 24 * time.Hour

// ErrCacheMiss is returned by Cache.Load when nothing is stored.
var ErrCacheMiss = errors.New("instrument cache miss")

// Cache persists an instrument list together with the time it was stored.
type Cache interface {
	Load(ctx context.Context) ([]model.Instrument, time.Time, error)
	Store(ctx context.Context, list []model.Instrument) error
}

// FileCache keeps the list as a JSON array; the file mtime is the store time.
type FileCache struct {
	Path string
}

func (c *FileCache) Load(_ context.Context) ([]model.Instrument, time.Time, error) {
	info, err := os.Stat(c.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, time.Time{}, ErrCacheMiss
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, time.Time{}, err
	}
	var list []model.Instrument
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode %s: %w", c.Path, err)
	}
	return list, info.ModTime(), nil
}

func (c *FileCache) Store(_ context.Context, list []model.Instrument) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(c.Path, data)
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

// Cached serves the instrument list from a Cache while it is fresh and
// reloads it from the source otherwise.
type Cached struct {
	source Provider
	cache  Cache
	maxAge time.Duration
	now    func() time.Time
	log    *logrus.Entry
}

func NewCached(source Provider, cache Cache, maxAge time.Duration) *Cached {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Cached{
		source: source,
		cache:  cache,
		maxAge: maxAge,
		now:    time.Now,
		log:    logger.GetLogger().WithComponent("directory"),
	}
}

func (c *Cached) Name() string { return nameOf(c.source) }

func (c *Cached) ListInstruments(ctx context.Context) ([]model.Instrument, error) {
	list, storedAt, err := c.cache.Load(ctx)
	switch {
	case err == nil && len(list) > 0 && c.now().Sub(storedAt) < c.maxAge:
		c.log.Infof("Loaded %d symbols from cache", len(list))
		return list, nil
	case err != nil && !errors.Is(err, ErrCacheMiss):
		c.log.Warnf("read symbol cache: %v", err)
	}
	return c.reload(ctx, list)
}

// Refresh reloads from the source regardless of cache age.
func (c *Cached) Refresh(ctx context.Context) ([]model.Instrument, error) {
	stale, _, _ := c.cache.Load(ctx)
	return c.reload(ctx, stale)
}

// Count reports the size of the cached list and whether one exists at all.
func (c *Cached) Count(ctx context.Context) (int, bool, error) {
	list, _, err := c.cache.Load(ctx)
	if errors.Is(err, ErrCacheMiss) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return len(list), true, nil
}

func (c *Cached) reload(ctx context.Context, stale []model.Instrument) ([]model.Instrument, error) {
	c.log.Info("Fetching symbol lists")
	list, err := c.source.ListInstruments(ctx)
	if err != nil {
		if len(stale) > 0 && errors.Is(err, ErrUnavailable) {
			c.log.Warnf("source unavailable, using %d stale cached symbols: %v", len(stale), err)
			return stale, nil
		}
		return nil, err
	}
	if err := c.cache.Store(ctx, list); err != nil {
		c.log.Warnf("write symbol cache: %v", err)
	}
	c.log.Infof("Total: %d symbols", len(list))
	return list, nil
}
