package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ATHScanner/internal/calculator"
	"ATHScanner/internal/collector"
	"ATHScanner/internal/directory"
	"ATHScanner/internal/logger"
	"ATHScanner/internal/model"
)

// PublishTimeout bounds delivery of a finished report to the sinks.
const PublishTimeout = 3 * time.Minute

var (
	ErrAlreadyRunning = errors.New("scan already running")
	ErrNotRunning     = errors.New("no scan running")
	ErrCancelled      = errors.New("scan cancelled")
)

// Fetcher loads one instrument's history; collector.Adapter implements it.
type Fetcher interface {
	Fetch(ctx context.Context, inst model.Instrument) (model.PriceSeries, error)
}

// Sink receives the finished report and progress updates.
type Sink interface {
	Publish(ctx context.Context, report *model.ScanReport) error
	UpdateProgress(p model.ScanProgress)
}

// Config holds the engine settings.
type Config struct {
	Concurrency    int
	Pacing         time.Duration
	ThresholdRatio float64
	MinHistory     int
	ETAEvery       int
	SourceLabel    string
}

// Orchestrator runs at most one scan at a time.
type Orchestrator struct {
	base       context.Context
	cfg        Config
	directory  directory.Provider
	fetcher    Fetcher
	sink       Sink
	pool       *Pool
	classifier calculator.Classifier
	progress   *Progress
	log        *logrus.Entry

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	last    *model.ScanReport
}

type Option func(*Orchestrator)

// WithLastReport seeds LastReport, e.g. with the report read back from storage.
func WithLastReport(r *model.ScanReport) Option {
	return func(o *Orchestrator) { o.last = r }
}

func WithLogger(entry *logrus.Entry) Option {
	return func(o *Orchestrator) { o.log = entry }
}

// New builds an orchestrator. Scans are cancelled when ctx is done.
func New(ctx context.Context, cfg Config, dir directory.Provider, fetcher Fetcher, sink Sink, opts ...Option) (*Orchestrator, error) {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.ThresholdRatio <= 0 || cfg.ThresholdRatio > 1 {
		return nil, fmt.Errorf("threshold ratio %v outside (0, 1]", cfg.ThresholdRatio)
	}
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = calculator.DefaultMinHistory
	}
	pool, err := NewPool(cfg.Concurrency, cfg.Pacing)
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		base:       ctx,
		cfg:        cfg,
		directory:  dir,
		fetcher:    fetcher,
		sink:       sink,
		pool:       pool,
		classifier: calculator.Classifier{ThresholdRatio: cfg.ThresholdRatio, MinHistory: cfg.MinHistory},
		progress:   NewProgress(cfg.ETAEvery),
		log:        logger.GetLogger().WithComponent("scanner"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// StartScan launches a scan in the background and returns its ID.
// The scan outlives ctx's cancellation but keeps its values.
func (o *Orchestrator) StartScan(ctx context.Context) (string, error) {
	scanCtx, scanID, err := o.begin(context.WithoutCancel(ctx))
	if err != nil {
		return "", err
	}
	go func() {
		if _, err := o.execute(scanCtx, scanID); err != nil && !errors.Is(err, ErrCancelled) {
			o.log.WithField("scan_id", scanID).Errorf("scan failed: %v", err)
		}
	}()
	return scanID, nil
}

// Run performs a scan synchronously. On directory failure it returns an
// empty report along with the error; on cancellation the partial report
// and an error wrapping ErrCancelled.
func (o *Orchestrator) Run(ctx context.Context) (*model.ScanReport, error) {
	scanCtx, scanID, err := o.begin(ctx)
	if err != nil {
		return nil, err
	}
	return o.execute(scanCtx, scanID)
}

// CancelScan asks the running scan to stop. It returns before the scan has
// wound down; watch CurrentProgress for Running to clear.
func (o *Orchestrator) CancelScan() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return ErrNotRunning
	}
	o.cancel()
	return nil
}

// CurrentProgress never blocks on a running scan.
func (o *Orchestrator) CurrentProgress() model.ScanProgress {
	return o.progress.Snapshot()
}

func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *Orchestrator) LastReport() *model.ScanReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

func (o *Orchestrator) begin(parent context.Context) (context.Context, string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return nil, "", ErrAlreadyRunning
	}
	scanCtx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(o.base, cancel)
	o.cancel = func() {
		stop()
		cancel()
	}
	o.running = true

	scanID := uuid.NewString()
	o.progress.Prepare(scanID)
	return scanCtx, scanID, nil
}

// end freezes progress and returns to Idle in one step, so a caller that
// observes Running=false can start the next scan immediately.
func (o *Orchestrator) end(freeze func(), report *model.ScanReport) {
	o.mu.Lock()
	freeze()
	if report != nil {
		o.last = report
	}
	final := o.progress.Snapshot()
	o.running = false
	o.cancel()
	o.cancel = nil
	o.mu.Unlock()
	o.sink.UpdateProgress(final)
}

func (o *Orchestrator) execute(ctx context.Context, scanID string) (*model.ScanReport, error) {
	log := o.log.WithField("scan_id", scanID)
	started := time.Now()
	o.sink.UpdateProgress(o.progress.Snapshot())

	instruments, err := o.directory.ListInstruments(ctx)
	switch {
	case errors.Is(err, directory.ErrEmpty):
		instruments = nil
	case err != nil:
		empty := &model.ScanReport{ScanID: scanID, ScanTimestamp: time.Now(), SourceLabel: o.cfg.SourceLabel}
		if ctx.Err() != nil {
			o.end(o.progress.Cancel, nil)
			return empty, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		log.Errorf("No symbols loaded: %v", err)
		o.end(func() { o.progress.Fail(err) }, nil)
		return empty, fmt.Errorf("list instruments: %w", err)
	}

	log.Infof("Starting ATH scan for %d symbols...", len(instruments))
	o.progress.Begin(len(instruments))
	o.sink.UpdateProgress(o.progress.Snapshot())

	assembler := NewAssembler()
	o.pool.RunAll(ctx, instruments, o.evaluate, func(inst model.Instrument, out model.Outcome) {
		if out.Kind == model.Match {
			rec := model.NewMatchRecord(inst, out, time.Now())
			if err := assembler.Add(rec); err != nil {
				log.Errorf("add match %s: %v", inst.ID, err)
			}
			log.Infof("★ ATH: %s - %s @ %.2f", rec.InstrumentID, rec.DisplayName, rec.LatestPrice)
		}
		if o.progress.Report(out) {
			snap := o.progress.Snapshot()
			log.Infof("Progress: %d/%d (%d%%) | ATH found: %d | ETA: %.0fs",
				snap.Processed, snap.Total, percent(snap.Processed, snap.Total), snap.Matched, snap.ETA.Seconds())
			o.sink.UpdateProgress(snap)
		}
	})

	snap := o.progress.Snapshot()
	header := ReportHeader{ScanID: scanID, StartedAt: started, TotalScanned: len(instruments), SourceLabel: o.cfg.SourceLabel}

	if ctx.Err() != nil {
		header.TotalScanned = snap.Processed
		report, _ := assembler.Finalize(header, time.Now())
		log.Warnf("Scan cancelled after %d/%d symbols", snap.Processed, snap.Total)
		o.end(o.progress.Cancel, nil)
		return report, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}

	report, err := assembler.Finalize(header, time.Now())
	if err != nil {
		o.end(func() { o.progress.Fail(err) }, nil)
		return nil, err
	}
	log.Infof("Scan complete in %.0fs | ATH stocks: %d | failed: %d",
		report.Duration.Seconds(), len(report.Matches), snap.Failed)

	// Idle first: slow sinks must not hold off the next scan.
	o.end(o.progress.Finish, report)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
	defer cancel()
	if err := o.sink.Publish(pubCtx, report); err != nil {
		log.Errorf("publish report: %v", err)
	}
	return report, nil
}

func (o *Orchestrator) evaluate(ctx context.Context, inst model.Instrument) model.Outcome {
	series, err := o.fetcher.Fetch(ctx, inst)
	if err != nil {
		kind := model.NoMatch
		if collector.KindOf(err) == collector.NotFound {
			kind = model.NotEvaluable
		}
		return model.Outcome{Kind: kind, Err: err}
	}
	return o.classifier.Classify(series)
}

func percent(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}
