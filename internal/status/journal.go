package status

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const journalFileName = "progress.log"

// Journal event names.
const (
	EventRunStarted       = "run_started"
	EventRunFinished      = "run_finished"
	EventTaskStarted      = "task_started"
	EventSectionCompleted = "section_completed"
	EventTaskCompleted    = "task_completed"
	EventTaskFailed       = "task_failed"
	EventTaskBlocked      = "task_blocked"
	EventCheckpoint       = "checkpoint"
)

// JournalEvent is one JSON Lines entry.
type JournalEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Event     string         `json:"event"`
	Data      map[string]any `json:"data,omitempty"`
}

// Journal appends run events to progress.log in the state directory. It is
// an audit trail only; skip and resume decisions never read it.
type Journal struct {
	path  string
	runID string
	now   func() time.Time
}

// NewJournal creates a journal for one run with a fresh run ID.
func NewJournal(stateDir string) *Journal {
	return &Journal{
		path:  filepath.Join(stateDir, journalFileName),
		runID: uuid.NewString(),
		now:   time.Now,
	}
}

// RunID identifies the run this journal records.
func (j *Journal) RunID() string {
	return j.runID
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Log appends an event. A nil journal discards events.
func (j *Journal) Log(event string, data map[string]any) error {
	if j == nil {
		return nil
	}
	line, err := json.Marshal(JournalEvent{
		Timestamp: j.now(),
		RunID:     j.runID,
		Event:     event,
		Data:      data,
	})
	if err != nil {
		return err
	}
	line = append(line, '\n')

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(line)
	return err
}

// ReadJournal returns every event in the journal file at path.
func ReadJournal(path string) ([]JournalEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var events []JournalEvent
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var ev JournalEvent
		if err := dec.Decode(&ev); err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}
