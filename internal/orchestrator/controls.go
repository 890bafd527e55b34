package orchestrator

import (
	"github.com/pablasso/baton/internal/status"
	"github.com/pablasso/baton/internal/task"
	"go.uber.org/zap"
)

// State is the derived state of a task for reporting.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateBlocked    State = "blocked"
)

// TaskView is one task as seen by the status report.
type TaskView struct {
	ID     string
	Title  string
	Order  int
	State  State
	Status status.TaskStatus
	// Known is false when the task has no status record yet.
	Known bool
}

// StateOf derives the reporting state of a status record.
func StateOf(st status.TaskStatus, known bool) State {
	switch {
	case !known:
		return StatePending
	case st.Blocked:
		return StateBlocked
	case st.Succeeded():
		return StateSucceeded
	case st.Failed():
		return StateFailed
	case st.InProgress():
		return StateInProgress
	default:
		return StatePending
	}
}

// Status returns one view per catalog task, in catalog order. It never
// mutates the status table.
func (o *Orchestrator) Status() ([]TaskView, error) {
	refs, err := task.List(o.tasksDir, o.taskExt)
	if err != nil {
		return nil, err
	}
	views := make([]TaskView, 0, len(refs))
	for _, ref := range refs {
		st, known := o.store.Get(ref.ID)
		view := TaskView{
			ID:     ref.ID,
			Title:  ref.ID,
			Order:  ref.Order,
			State:  StateOf(st, known),
			Status: st,
			Known:  known,
		}
		if def, err := task.Load(ref); err == nil {
			view.Title = def.DisplayName()
		}
		views = append(views, view)
	}
	return views, nil
}

// Reset discards all recorded progress.
func (o *Orchestrator) Reset() error {
	if err := o.store.Reset(); err != nil {
		return err
	}
	o.logger.Info("status reset")
	return nil
}

// ClearBlocked removes every blocked marker, keeping completion flags, so
// the next run re-enters at the first task that has not succeeded.
func (o *Orchestrator) ClearBlocked() (int, error) {
	cleared, err := o.store.ClearBlocked()
	if err != nil {
		return 0, err
	}
	o.logger.Info("cleared blocked tasks", zap.Int("count", cleared))
	return cleared, nil
}
