package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pablasso/baton/internal/failure"
	"github.com/pablasso/baton/internal/logging"
	"go.uber.org/zap"
)

// Store is the only writer of the status table. Every mutation rewrites the
// whole file before returning.
type Store struct {
	path   string
	tasks  map[string]*TaskStatus
	now    func() time.Time
	logger *zap.Logger
}

// NewStore creates a store backed by the JSON file at path. Call Load before
// reading.
func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{
		path:   path,
		tasks:  make(map[string]*TaskStatus),
		now:    time.Now,
		logger: logging.OrNop(logger).Named("status"),
	}
}

// WithClock sets the time source used for timestamps (useful for testing).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the table from disk. A missing file yields an empty table. An
// unreadable or unparseable file also yields an empty table and is logged as
// an error, since prior progress is forgotten.
func (s *Store) Load() {
	s.tasks = make(map[string]*TaskStatus)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("status file unreadable, starting from an empty table",
				zap.String("kind", failure.StatusCorruption.String()),
				zap.String("path", s.path),
				zap.Error(err))
		}
		return
	}

	var table map[string]*TaskStatus
	if err := json.Unmarshal(data, &table); err != nil {
		s.logger.Error("status file corrupt, starting from an empty table",
			zap.String("kind", failure.StatusCorruption.String()),
			zap.String("path", s.path),
			zap.Error(err))
		return
	}

	for id, st := range table {
		if st == nil {
			continue
		}
		if err := st.validate(); err != nil {
			s.logger.Error("discarding invalid status record",
				zap.String("kind", failure.StatusCorruption.String()),
				zap.String("task", id),
				zap.Error(err))
			continue
		}
		s.tasks[id] = st
	}
}

// Save atomically writes the table using a temp file and rename.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	data, err := json.MarshalIndent(s.tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	data = append(data, '\n')

	tmpPath := fmt.Sprintf("%s.tmp.%d", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Get returns a copy of the task's status.
func (s *Store) Get(id string) (TaskStatus, bool) {
	st, ok := s.tasks[id]
	if !ok {
		return TaskStatus{}, false
	}
	return *st.clone(), true
}

// IDs returns the task IDs present in the table, sorted.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Succeeded reports whether the task is recorded as completed successfully.
func (s *Store) Succeeded(id string) bool {
	return s.tasks[id].Succeeded()
}

// MarkStarted opens a new attempt. resumeFrom is the number of sections
// already completed by an interrupted earlier attempt; pass 0 to start over.
func (s *Store) MarkStarted(id string, totalSections, resumeFrom int) (TaskStatus, error) {
	st, ok := s.tasks[id]
	if !ok {
		st = &TaskStatus{}
		s.tasks[id] = st
	}
	now := s.now()
	st.Attempts++
	st.StartedAt = &now
	st.FinishedAt = nil
	st.TotalSections = totalSections
	st.CompletedSections = resumeFrom
	st.Completed = false
	st.Success = false
	st.Error = ""
	st.SectionReached = 0
	return *st.clone(), s.Save()
}

// MarkSectionCompleted records that the first completed sections are done.
func (s *Store) MarkSectionCompleted(id string, completed int) error {
	st, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("no status for task %s", id)
	}
	if completed > st.TotalSections {
		return fmt.Errorf("task %s: section %d beyond total %d", id, completed, st.TotalSections)
	}
	st.CompletedSections = completed
	return s.Save()
}

// MarkFinished closes the current attempt. sectionReached is the 1-based
// section executing when the task ended.
func (s *Store) MarkFinished(id string, success bool, errText string, sectionReached int) error {
	st, ok := s.tasks[id]
	if !ok {
		st = &TaskStatus{}
		s.tasks[id] = st
	}
	now := s.now()
	st.FinishedAt = &now
	st.Completed = true
	st.Success = success
	st.Error = errText
	st.SectionReached = sectionReached
	return s.Save()
}

// MarkBlocked flags the task as blocked by an upstream failure. Repeated
// calls keep the first reason and timestamp. Completion flags are untouched.
func (s *Store) MarkBlocked(id, reason string) error {
	st, ok := s.tasks[id]
	if !ok {
		st = &TaskStatus{}
		s.tasks[id] = st
	}
	if st.Blocked && st.BlockedReason != "" && st.BlockedAt != nil {
		return nil
	}
	st.Blocked = true
	if st.BlockedReason == "" {
		st.BlockedReason = reason
	}
	if st.BlockedAt == nil {
		now := s.now()
		st.BlockedAt = &now
	}
	return s.Save()
}

// ClearBlocked removes the blocked marker from every task and returns how
// many were cleared. Completed and success flags are preserved.
func (s *Store) ClearBlocked() (int, error) {
	cleared := 0
	for _, st := range s.tasks {
		if !st.Blocked && st.BlockedReason == "" && st.BlockedAt == nil {
			continue
		}
		st.Blocked = false
		st.BlockedReason = ""
		st.BlockedAt = nil
		cleared++
	}
	if cleared == 0 {
		return 0, nil
	}
	return cleared, s.Save()
}

// Reset discards all status and removes the backing file.
func (s *Store) Reset() error {
	s.tasks = make(map[string]*TaskStatus)
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove status file: %w", err)
	}
	return nil
}
