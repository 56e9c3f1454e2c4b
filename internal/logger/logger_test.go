package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithComponent(t *testing.T) {
	entry := Discard().WithComponent("scanner")
	assert.Equal(t, "scanner", entry.Data["component"])
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	assert.Error(t, Discard().Configure("loud", "text", "stderr", 0))
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	assert.Error(t, Discard().Configure("info", "xml", "stderr", 0))
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "logs", "scanner.log")

	l := Discard()
	require.NoError(t, l.Configure("debug", "json", path, 0))
	assert.Equal(t, path, l.File())
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	l.WithComponent("test").Info("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestConfigureEnvLevelWins(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	l := Discard()
	require.NoError(t, l.Configure("debug", "text", "stderr", 0))
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}
