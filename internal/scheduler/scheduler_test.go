package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ATHScanner/internal/model"
	"ATHScanner/internal/scanner"
)

type fakeScanner struct {
	mu       sync.Mutex
	starts   int
	running  bool
	startErr error
	last     *model.ScanReport
}

func (f *fakeScanner) StartScan(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return "", f.startErr
	}
	if f.running {
		return "", scanner.ErrAlreadyRunning
	}
	f.running = true
	return "scan-1", nil
}

func (f *fakeScanner) CancelScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return scanner.ErrNotRunning
	}
	f.running = false
	return nil
}

func (f *fakeScanner) CurrentProgress() model.ScanProgress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.ScanProgress{Running: f.running, Message: "Scanning... 1/2 stocks", Total: 2, Processed: 1}
}

func (f *fakeScanner) LastReport() *model.ScanReport { return f.last }

func (f *fakeScanner) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (m *fakeMessenger) SendWithRetry(_ context.Context, text string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	return nil
}

func TestHandleCommand(t *testing.T) {
	sc := &fakeScanner{}
	s := NewScheduler(context.Background(), sc, nil, time.UTC)
	ctx := context.Background()

	assert.Equal(t, "No scan results yet.", s.HandleCommand(ctx, "/results"))
	assert.Equal(t, "No scan is running.", s.HandleCommand(ctx, "/cancel"))
	assert.Contains(t, s.HandleCommand(ctx, "/scan@ath_bot"), "Scan started (scan-1)")
	assert.Contains(t, s.HandleCommand(ctx, "/scan"), "already running")
	assert.Contains(t, s.HandleCommand(ctx, "/status"), "Progress: 1/2")
	assert.Contains(t, s.HandleCommand(ctx, "/cancel"), "Cancelling")
	assert.Contains(t, s.HandleCommand(ctx, "hello"), "/scan - start a scan now")

	sc.last = &model.ScanReport{TotalScanned: 5, Matches: []model.MatchRecord{{InstrumentID: "A.NS", DisplayName: "A"}}}
	assert.Contains(t, s.HandleCommand(ctx, "/results"), "Scanned: 5 | At ATH: 1")
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeScanner{}, nil, time.UTC)
	assert.Error(t, s.Register("not a cron"))
	assert.NoError(t, s.Register(""))
}

func TestScheduledTrigger(t *testing.T) {
	sc := &fakeScanner{}
	s := NewScheduler(context.Background(), sc, nil, time.UTC)
	require.NoError(t, s.Register("* * * * * *"))
	s.Start()
	defer s.Stop()

	// The second tick finds the first scan still running and is skipped.
	require.Eventually(t, func() bool { return sc.startCount() >= 2 }, 3*time.Second, 20*time.Millisecond)
	assert.True(t, sc.CurrentProgress().Running)
}

func TestScanTaskNotifiesStartFailure(t *testing.T) {
	m := &fakeMessenger{}
	s := NewScheduler(context.Background(), &fakeScanner{startErr: errors.New("boom")}, m, time.UTC)
	s.scanTask()
	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0], "boom")
}

func TestRunNow(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeScanner{}, nil, time.UTC)
	id, err := s.RunNow()
	require.NoError(t, err)
	assert.Equal(t, "scan-1", id)
	_, err = s.RunNow()
	assert.ErrorIs(t, err, scanner.ErrAlreadyRunning)
}
