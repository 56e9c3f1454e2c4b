package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"ATHScanner/internal/logger"
	"ATHScanner/internal/model"
	"ATHScanner/internal/notifier"
	"ATHScanner/internal/scanner"
)

// DefaultScanCron is 15:31 on weekdays, one minute after the NSE close.
const DefaultScanCron = "0 31 15 * * 1-5"

// Scanner is the part of the orchestrator the triggers use.
type Scanner interface {
	StartScan(ctx context.Context) (string, error)
	CancelScan() error
	CurrentProgress() model.ScanProgress
	LastReport() *model.ScanReport
}

// Messenger delivers operator notifications.
type Messenger interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler fires scans on a cron schedule and answers chat commands.
type Scheduler struct {
	Cron      *cron.Cron
	Scanner   Scanner
	Messenger Messenger // may be nil
	Location  *time.Location
	Ctx       context.Context
	log       *logrus.Entry
}

// NewScheduler creates a new Scheduler evaluating cron specs in loc.
func NewScheduler(ctx context.Context, sc Scanner, m Messenger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		Scanner:   sc,
		Messenger: m,
		Location:  loc,
		Ctx:       ctx,
		log:       logger.GetLogger().WithComponent("scheduler"),
	}
}

// Register adds the scan trigger.
func (s *Scheduler) Register(scanCron string) error {
	if scanCron == "" {
		scanCron = DefaultScanCron
	}
	if _, err := s.Cron.AddFunc(scanCron, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	s.log.Infof("scan scheduled: %q (%s)", scanCron, s.Location)
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running trigger to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunNow triggers a scan immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunNow() (string, error) {
	return s.Scanner.StartScan(s.Ctx)
}

func (s *Scheduler) scanTask() {
	s.log.Info("running scheduled scan")
	id, err := s.Scanner.StartScan(s.Ctx)
	switch {
	case errors.Is(err, scanner.ErrAlreadyRunning):
		s.log.Warn("scheduled scan skipped: a scan is already running")
	case err != nil:
		s.log.Errorf("start scheduled scan: %v", err)
		s.trySend(fmt.Sprintf("❌ Scheduled scan failed to start: %v", err))
	default:
		s.log.WithField("scan_id", id).Info("scheduled scan started")
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	// Commands in groups arrive as /cmd@BotName.
	cmd := strings.ToLower(strings.SplitN(strings.TrimSpace(command), "@", 2)[0])
	switch cmd {
	case "/scan":
		id, err := s.Scanner.StartScan(ctx)
		if errors.Is(err, scanner.ErrAlreadyRunning) {
			return "⚠️ A scan is already running.\n\n" + notifier.FormatProgress(s.Scanner.CurrentProgress())
		}
		if err != nil {
			return fmt.Sprintf("❌ Could not start scan: %v", err)
		}
		return fmt.Sprintf("🚀 Scan started (%s)", id)
	case "/status":
		return notifier.FormatProgress(s.Scanner.CurrentProgress())
	case "/results":
		r := s.Scanner.LastReport()
		if r == nil {
			return "No scan results yet."
		}
		return notifier.FormatReport(r, s.Location, 40)
	case "/cancel":
		if err := s.Scanner.CancelScan(); err != nil {
			return "No scan is running."
		}
		return "🛑 Cancelling scan..."
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Messenger == nil {
		return
	}
	if err := s.Messenger.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Errorf("send notification: %v", err)
	}
}
