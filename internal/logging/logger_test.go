package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pablasso/baton/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
}

func TestNew_WritesBothSinks(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, closeFn, err := NewWithClock(config.Log{Level: "info"}, dir, zapcore.AddSync(&console), fixedClock)
	require.NoError(t, err)

	logger.Info("task completed", zap.String("task", "01-setup"))
	logger.Debug("hidden at info level")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(filepath.Join(dir, "baton-2024-06-15.log"))
	require.NoError(t, err)

	assert.Contains(t, string(data), "task completed")
	assert.Contains(t, string(data), "01-setup")
	assert.NotContains(t, string(data), "hidden at info level")
	assert.Contains(t, console.String(), "task completed")
}

func TestNew_AppendsAcrossRuns(t *testing.T) {
	dir := t.TempDir()

	for _, msg := range []string{"first run", "second run"} {
		logger, closeFn, err := NewWithClock(config.Log{Level: "info"}, dir, zapcore.AddSync(&bytes.Buffer{}), fixedClock)
		require.NoError(t, err)
		logger.Info(msg)
		require.NoError(t, closeFn())
	}

	data, err := os.ReadFile(filepath.Join(dir, DailyFileName(fixedClock())))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "first run")
	assert.Contains(t, lines[1], "second run")
}

func TestNew_SwitchesFileAtMidnight(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	logger, closeFn, err := NewWithClock(config.Log{Level: "info"}, dir, zapcore.AddSync(&bytes.Buffer{}), now)
	require.NoError(t, err)

	logger.Info("before midnight")
	clock = clock.Add(2 * time.Minute)
	logger.Info("after midnight")
	require.NoError(t, closeFn())

	first, err := os.ReadFile(filepath.Join(dir, "baton-2024-06-15.log"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "baton-2024-06-16.log"))
	require.NoError(t, err)

	assert.Contains(t, string(first), "before midnight")
	assert.NotContains(t, string(first), "after midnight")
	assert.Contains(t, string(second), "after midnight")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := NewWithClock(config.Log{Level: "chatty"}, t.TempDir(), zapcore.AddSync(&bytes.Buffer{}), fixedClock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid level")
}

func TestDailyFileName(t *testing.T) {
	assert.Equal(t, "baton-2024-06-15.log", DailyFileName(fixedClock()))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
