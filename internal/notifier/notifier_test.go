package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ATHScanner/internal/model"
)

type fakeBot struct {
	mu       sync.Mutex
	failures int
	sent     []string
	updates  string
}

func (f *fakeBot) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var payload map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "42", payload["chat_id"])
			assert.Equal(t, "HTML", payload["parse_mode"])
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.failures > 0 {
				f.failures--
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			f.sent = append(f.sent, payload["text"])
			_, _ = w.Write([]byte(`{"ok":true}`))
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			_, _ = w.Write([]byte(f.updates))
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestNotifier(t *testing.T, bot *fakeBot) *TelegramNotifier {
	srv := httptest.NewServer(bot.handler(t))
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIBase = srv.URL
	n.Backoff = time.Millisecond
	return n
}

func report() *model.ScanReport {
	return &model.ScanReport{
		ScanTimestamp: time.Date(2026, 3, 2, 10, 1, 0, 0, time.UTC),
		TotalScanned:  3,
		Duration:      95 * time.Second,
		Matches: []model.MatchRecord{
			{InstrumentID: "A&B.NS", DisplayName: "A & B Ltd", LatestPrice: 15, AllTimeHigh: 15.004},
			{InstrumentID: "C.NS", DisplayName: "C Ltd", LatestPrice: 9.8, AllTimeHigh: 10},
		},
	}
}

func TestPublishRetriesUntilSent(t *testing.T) {
	bot := &fakeBot{failures: 2}
	n := newTestNotifier(t, bot)

	require.NoError(t, n.Publish(context.Background(), report()))
	require.Len(t, bot.sent, 1)
	assert.Contains(t, bot.sent[0], "Scanned: 3 | At ATH: 2")
	assert.Contains(t, bot.sent[0], "<b>A&amp;B.NS</b> A &amp; B Ltd ₹15.00 (ATH ₹15.00)")
}

func TestPublishGivesUp(t *testing.T) {
	bot := &fakeBot{failures: 10}
	n := newTestNotifier(t, bot)
	n.MaxRetries = 1

	err := n.Publish(context.Background(), report())
	assert.ErrorContains(t, err, "all 2 retries exhausted")
}

func TestPollDispatchesCommands(t *testing.T) {
	bot := &fakeBot{updates: `{"ok":true,"result":[
		{"update_id":7,"message":{"text":" /status "}},
		{"update_id":8,"message":null},
		{"update_id":9,"message":{"text":"/noop"}}]}`}
	n := newTestNotifier(t, bot)

	var got []string
	offset := 0
	handled, err := n.poll(context.Background(), n.Client, &offset, func(_ context.Context, cmd string) string {
		got = append(got, cmd)
		if cmd == "/status" {
			return "idle"
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, 2, handled)
	assert.Equal(t, 10, offset)
	assert.Equal(t, []string{"/status", "/noop"}, got)
	assert.Equal(t, []string{"idle"}, bot.sent)
}

func TestFormatReport(t *testing.T) {
	msg := FormatReport(report(), time.FixedZone("IST", 19800), 1)
	assert.Contains(t, msg, "02 Mar 2026 03:31 PM IST")
	assert.Contains(t, msg, "Took: 1m35s")
	assert.Contains(t, msg, "…and 1 more")
	assert.NotContains(t, msg, "C.NS")

	empty := FormatReport(&model.ScanReport{}, nil, 0)
	assert.Contains(t, empty, "No stocks at their all-time high")
}

func TestFormatProgress(t *testing.T) {
	msg := FormatProgress(model.ScanProgress{Running: true, Total: 10, Processed: 4, Matched: 1, Message: "Scanning... 4/10 stocks", ETA: 90 * time.Second})
	assert.Contains(t, msg, "Scan running")
	assert.Contains(t, msg, "Progress: 4/10 | Found: 1 | Failed: 0")
	assert.Contains(t, msg, "ETA: 1m30s")
	assert.Contains(t, FormatProgress(model.ScanProgress{Message: "Idle"}), "Scanner idle")
}
