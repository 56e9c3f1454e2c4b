package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 6, cfg.Scan.Concurrency)
	assert.Equal(t, 0.98, cfg.Scan.ThresholdRatio)
	assert.Equal(t, 20, cfg.Scan.MinHistory)
	assert.Equal(t, 20*time.Second, cfg.Scan.FetchTimeout)
	assert.Equal(t, "yahoo", cfg.Source.Kind)
	assert.Equal(t, "10y", cfg.Source.HistoryRange)
	assert.Equal(t, "0 31 15 * * 1-5", cfg.Schedule.ScanCron)
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
	assert.Equal(t, "sqlite", cfg.Storage.Database.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.Directory.Redis.TTL)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
scan:
  concurrency: 12
  pacing: 250ms
  fetch_timeout: 5s
source:
  kind: rest
  base_url: http://bars.local
directory:
  classes: [EQ, BE]
telegram:
  bot_token: file-token
  chat_id: "42"
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("ATH_THRESHOLD", "0.95")
	t.Setenv("RUN_ON_START", "true")
	t.Setenv("HTTP_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 12, cfg.Scan.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Scan.Pacing)
	assert.Equal(t, 5*time.Second, cfg.Scan.FetchTimeout)
	assert.Equal(t, 0.95, cfg.Scan.ThresholdRatio)
	assert.True(t, cfg.Scan.RunOnStart)
	assert.Equal(t, []string{"EQ", "BE"}, cfg.Directory.Classes)
	assert.Equal(t, "env-token", cfg.Telegram.BotToken)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("SCAN_CONCURRENCY", "many")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"concurrency too high", "scan: {concurrency: 65}"},
		{"threshold above one", "scan: {threshold_ratio: 1.2}"},
		{"rest without url", "source: {kind: rest}"},
		{"unknown source", "source: {kind: ftp}"},
		{"postgres without dsn", "storage: {database: {driver: postgres}}"},
		{"half telegram", "telegram: {bot_token: abc}"},
		{"bad timezone", "schedule: {timezone: Mars/Olympus}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.yaml))
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}
