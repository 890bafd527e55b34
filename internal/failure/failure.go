// Package failure defines the error kinds the orchestrator distinguishes when
// deciding whether to abort at startup, halt a run, or log and continue.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the orchestrator must react to it.
type Kind int

const (
	Unknown Kind = iota
	CatalogNotFound
	MalformedTask
	SectionTimeout
	SectionProcessFailure
	StatusCorruption
	CheckpointFailure
	PushFailure
)

func (k Kind) String() string {
	switch k {
	case CatalogNotFound:
		return "catalog_not_found"
	case MalformedTask:
		return "malformed_task"
	case SectionTimeout:
		return "section_timeout"
	case SectionProcessFailure:
		return "section_process_failure"
	case StatusCorruption:
		return "status_corruption"
	case CheckpointFailure:
		return "checkpoint_failure"
	case PushFailure:
		return "push_failure"
	default:
		return "unknown"
	}
}

// Fatal reports whether the kind aborts the process before any task runs.
func (k Kind) Fatal() bool {
	return k == CatalogNotFound
}

// HaltsRun reports whether the kind is a task failure that is recorded and
// then stops the task loop.
func (k Kind) HaltsRun() bool {
	switch k {
	case MalformedTask, SectionTimeout, SectionProcessFailure:
		return true
	default:
		return false
	}
}

// Error carries a Kind alongside the operation that failed and its cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New wraps err with a kind and the operation that produced it.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an Error whose cause is a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
