package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pablasso/baton/internal/failure"
	"github.com/pablasso/baton/internal/logging"
	"go.uber.org/zap"
)

// VCS is the version-control surface a checkpoint needs.
type VCS interface {
	Stage(ctx context.Context) error
	Commit(ctx context.Context, message string) (string, error)
	Push(ctx context.Context) error
}

// Outcome reports what one checkpoint achieved. Err carries the first
// failure, of kind CheckpointFailure or PushFailure.
type Outcome struct {
	Committed bool
	Pushed    bool
	Hash      string
	Err       error
}

// Checkpointer stages, commits and pushes the working tree. It never fails
// the caller; every problem is logged and reported in the Outcome.
type Checkpointer struct {
	vcs    VCS
	logger *zap.Logger
}

// NewCheckpointer creates a checkpointer over vcs.
func NewCheckpointer(vcs VCS, logger *zap.Logger) *Checkpointer {
	return &Checkpointer{vcs: vcs, logger: logging.OrNop(logger).Named("checkpoint")}
}

// Checkpoint records progress after completed tasks, the last being label.
func (c *Checkpointer) Checkpoint(ctx context.Context, completed int, label string) Outcome {
	log := c.logger.With(zap.Int("completed", completed), zap.String("label", label))
	log.Info("checkpoint started")

	if err := c.vcs.Stage(ctx); err != nil {
		log.Error("stage failed", zap.Error(err))
		return Outcome{Err: failure.New(failure.CheckpointFailure, "stage", err)}
	}
	log.Info("staged all changes")

	hash, err := c.vcs.Commit(ctx, CommitMessage(completed, label))
	if errors.Is(err, ErrNothingToCommit) {
		log.Info("nothing to commit, skipping push")
		return Outcome{}
	}
	if err != nil {
		log.Error("commit failed", zap.Error(err))
		return Outcome{Err: failure.New(failure.CheckpointFailure, "commit", err)}
	}
	log.Info("committed", zap.String("hash", shortHash(hash)))

	out := Outcome{Committed: true, Hash: hash}
	if err := c.vcs.Push(ctx); err != nil {
		log.Warn("push failed, local commit kept", zap.Error(err))
		out.Err = failure.New(failure.PushFailure, "push", err)
		return out
	}
	log.Info("pushed")
	out.Pushed = true
	return out
}

// CommitMessage builds the checkpoint commit message.
func CommitMessage(completed int, label string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "baton: checkpoint after %d completed task", completed)
	if completed != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Completed: %d\n", completed)
	fmt.Fprintf(&sb, "Last task: %s\n", label)
	return sb.String()
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
