// Package logging builds the dual-sink logger: human-readable lines on the
// console plus the same lines appended to a per-day file, so a run can be
// inspected after the terminal is gone.
package logging

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pablasso/baton/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FilePrefix starts every daily log file name.
const FilePrefix = "baton-"

// DailyFileName returns the log file name for the calendar day of t.
func DailyFileName(t time.Time) string {
	return FilePrefix + t.Format("2006-01-02") + ".log"
}

// ParseLevel converts a config level name into a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return l, fmt.Errorf("logging: invalid level %q: %w", level, err)
	}
	return l, nil
}

// New creates a logger writing to stderr and to today's file under logDir.
// The returned close function flushes and releases the file.
func New(cfg config.Log, logDir string) (*zap.Logger, func() error, error) {
	return NewWithClock(cfg, logDir, os.Stderr, time.Now)
}

// NewWithClock is New with an explicit console sink and clock.
func NewWithClock(cfg config.Log, logDir string, console zapcore.WriteSyncer, now func() time.Time) (*zap.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	f, err := openDailyFile(logDir, now)
	if err != nil {
		return nil, nil, err
	}

	enabler := zap.NewAtomicLevelAt(level)
	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder(), zapcore.Lock(console), enabler),
		zapcore.NewCore(fileEncoder(), f, enabler),
	)
	logger := zap.New(core)

	closeFn := func() error {
		_ = logger.Sync()
		return f.Close()
	}
	return logger, closeFn, nil
}

func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cfg.CallerKey = ""
	cfg.StacktraceKey = ""
	return zapcore.NewConsoleEncoder(cfg)
}

func fileEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.CallerKey = ""
	return zapcore.NewConsoleEncoder(cfg)
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
