package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// dailyFile is a zapcore.WriteSyncer appending to the file of the current
// calendar day. The day is checked on every write, so a run that crosses
// midnight continues in the new day's file.
type dailyFile struct {
	mu   sync.Mutex
	dir  string
	now  func() time.Time
	name string
	f    *os.File
}

func openDailyFile(dir string, now func() time.Time) (*dailyFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	d := &dailyFile{dir: dir, now: now}
	if err := d.open(DailyFileName(now())); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *dailyFile) open(name string) error {
	f, err := os.OpenFile(filepath.Join(d.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logging: open log file: %w", err)
	}
	if d.f != nil {
		_ = d.f.Close()
	}
	d.f = f
	d.name = name
	return nil
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if name := DailyFileName(d.now()); name != d.name {
		if err := d.open(name); err != nil {
			return 0, err
		}
	}
	return d.f.Write(p)
}

func (d *dailyFile) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Sync()
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Close()
}
