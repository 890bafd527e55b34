// Package status owns the durable per-task progress table and the run-level
// artifacts that sit beside it: the run lock and the progress journal.
package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskStatus is the persisted progress record of one task.
type TaskStatus struct {
	StartedAt         *time.Time `json:"started_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	Attempts          int        `json:"attempts"`
	TotalSections     int        `json:"total_sections"`
	CompletedSections int        `json:"completed_sections"`
	Completed         bool       `json:"completed"`
	Success           bool       `json:"success"`
	Error             string     `json:"error,omitempty"`
	// SectionReached is the 1-based section that was executing when the
	// task finished.
	SectionReached int `json:"section_reached,omitempty"`

	Blocked       bool       `json:"blocked,omitempty"`
	BlockedReason string     `json:"blocked_reason,omitempty"`
	BlockedAt     *time.Time `json:"blocked_at,omitempty"`

	// extra holds keys written by other tools or older versions. They are
	// written back unchanged and never interpreted.
	extra map[string]json.RawMessage
}

// Succeeded reports whether the task finished successfully.
func (s *TaskStatus) Succeeded() bool {
	return s != nil && s.Completed && s.Success
}

// InProgress reports whether the task was started but never finished.
func (s *TaskStatus) InProgress() bool {
	return s != nil && s.StartedAt != nil && !s.Completed
}

// Failed reports whether the task finished without success.
func (s *TaskStatus) Failed() bool {
	return s != nil && s.Completed && !s.Success
}

type taskStatusFields TaskStatus

// knownKeys are the JSON keys TaskStatus interprets.
var knownKeys = map[string]bool{
	"started_at": true, "finished_at": true, "attempts": true,
	"total_sections": true, "completed_sections": true, "completed": true,
	"success": true, "error": true, "section_reached": true,
	"blocked": true, "blocked_reason": true, "blocked_at": true,
}

// UnmarshalJSON decodes known fields and keeps unknown keys opaque.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var fields taskStatusFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = TaskStatus(fields)
	for k, v := range raw {
		if knownKeys[k] {
			continue
		}
		if s.extra == nil {
			s.extra = make(map[string]json.RawMessage)
		}
		s.extra[k] = v
	}
	return nil
}

// MarshalJSON encodes known fields plus preserved unknown keys, with keys
// in sorted order so identical records encode to identical bytes.
func (s TaskStatus) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(taskStatusFields(s))
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range s.extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// validate rejects records whose counters contradict each other.
func (s *TaskStatus) validate() error {
	if s.Attempts < 0 {
		return fmt.Errorf("negative attempts %d", s.Attempts)
	}
	if s.TotalSections < 0 || s.CompletedSections < 0 {
		return fmt.Errorf("negative section counts")
	}
	if s.CompletedSections > s.TotalSections {
		return fmt.Errorf("completed sections %d exceed total %d", s.CompletedSections, s.TotalSections)
	}
	if s.Success && !s.Completed {
		return fmt.Errorf("success set on an unfinished task")
	}
	return nil
}

func (s *TaskStatus) clone() *TaskStatus {
	c := *s
	if s.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(s.extra))
		for k, v := range s.extra {
			c.extra[k] = v
		}
	}
	return &c
}
