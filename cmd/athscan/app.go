package main

import (
	"context"
	"fmt"

	"ATHScanner/internal/collector"
	"ATHScanner/internal/config"
	"ATHScanner/internal/directory"
	"ATHScanner/internal/logger"
	"ATHScanner/internal/metrics"
	"ATHScanner/internal/recorder"
	"ATHScanner/internal/scanner"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg       *config.Config
	symbols   *directory.Cached
	directory directory.Provider
	fetcher   *collector.Adapter
	metrics   *metrics.Registry
	results   *recorder.FileStore
	history   *recorder.SQLStore
	sinks     *recorder.Multi
	closers   []func() error
}

func newApp(cfg *config.Config) (*app, error) {
	log := logger.GetLogger().WithComponent("main")
	a := &app{
		cfg:     cfg,
		metrics: metrics.New(),
		results: recorder.NewFileStore(cfg.Storage.ResultsFile, cfg.Location()),
	}

	cache, err := a.buildCache()
	if err != nil {
		return nil, err
	}
	a.symbols = directory.NewCached(a.buildSources(), cache, cfg.Directory.CacheMaxAge)
	classes := cfg.Directory.Classes
	if len(classes) == 0 {
		classes = directory.DefaultEquityClasses
	}
	exempt := cfg.Directory.ExemptExchanges
	if len(exempt) == 0 {
		exempt = []string{"BSE"}
	}
	a.directory = directory.NewClassFilter(a.symbols, classes, exempt)

	fetcher, err := buildFetcher(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	b := cfg.Source.Breaker
	a.fetcher = collector.NewAdapter(fetcher, cfg.Scan.FetchTimeout,
		collector.WithBreaker(collector.BreakerSettings{
			ConsecutiveFailures: b.ConsecutiveFailures,
			OpenTimeout:         b.OpenTimeout,
			HalfOpenRequests:    b.HalfOpenRequests,
		}),
		collector.WithObserver(a.metrics))
	log.Infof("data source: %s", a.fetcher.Name())

	a.sinks = recorder.NewMulti(a.results, a.metrics)
	if db := cfg.Storage.Database; db.Driver != "none" {
		store, err := recorder.OpenSQLStore(db.Driver, db.DSN)
		if err != nil {
			log.Warnf("init %s scan history failed, continuing without it: %v", db.Driver, err)
		} else {
			a.history = store
			a.sinks.Add(store)
			a.closers = append(a.closers, store.Close)
		}
	}
	return a, nil
}

func (a *app) buildSources() directory.Provider {
	d := a.cfg.Directory
	if d.File != "" {
		return &directory.FileSource{Path: d.File}
	}
	client := directory.NewHTTPClient(a.cfg.Proxy)
	return directory.NewCombined(
		directory.NewNSESource(d.NSEURL, client),
		directory.NewBSESource(d.BSEURL, client),
	)
}

func (a *app) buildCache() (directory.Cache, error) {
	r := a.cfg.Directory.Redis
	if r.Addr == "" {
		return &directory.FileCache{Path: a.cfg.Directory.CacheFile}, nil
	}
	rc, err := directory.NewRedisCache(r.Addr, r.Password, r.DB, r.Key, r.TTL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, rc.Close)
	return rc, nil
}

func buildFetcher(cfg *config.Config) (collector.HistoryFetcher, error) {
	switch cfg.Source.Kind {
	case "yahoo":
		f := collector.NewYahooFetcher(cfg.Source.HistoryRange, cfg.Proxy)
		if cfg.Source.BaseURL != "" {
			f.BaseURL = cfg.Source.BaseURL
		}
		return f, nil
	case "rest":
		return collector.NewRestFetcher(cfg.Source.BaseURL, cfg.Source.APIKey, cfg.Proxy, cfg.Source.Bars), nil
	case "mock":
		return &collector.MockFetcher{Price: 100, Days: 300}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// newOrchestrator builds the scan engine publishing to the app's sinks.
// The last stored report seeds /results and LastReport.
func (a *app) newOrchestrator(ctx context.Context, opts ...scanner.Option) (*scanner.Orchestrator, error) {
	s := a.cfg.Scan
	if last, err := a.results.LatestReport(); err != nil {
		logger.GetLogger().WithComponent("main").Warnf("read previous results: %v", err)
	} else if last != nil {
		opts = append(opts, scanner.WithLastReport(last))
	}
	return scanner.New(ctx, scanner.Config{
		Concurrency:    s.Concurrency,
		Pacing:         s.Pacing,
		ThresholdRatio: s.ThresholdRatio,
		MinHistory:     s.MinHistory,
		ETAEvery:       s.ETAEvery,
		SourceLabel:    a.fetcher.Name(),
	}, a.directory, a.fetcher, a.sinks, opts...)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
