package git

import (
	"context"
	"errors"
	"testing"

	"github.com/pablasso/baton/internal/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeVCS struct {
	stageErr  error
	commitErr error
	pushErr   error
	calls     []string
	messages  []string
}

func (f *fakeVCS) Stage(ctx context.Context) error {
	f.calls = append(f.calls, "stage")
	return f.stageErr
}

func (f *fakeVCS) Commit(ctx context.Context, message string) (string, error) {
	f.calls = append(f.calls, "commit")
	f.messages = append(f.messages, message)
	if f.commitErr != nil {
		return "", f.commitErr
	}
	return "0123456789abcdef0123456789abcdef01234567", nil
}

func (f *fakeVCS) Push(ctx context.Context) error {
	f.calls = append(f.calls, "push")
	return f.pushErr
}

func newTestCheckpointer(vcs VCS) (*Checkpointer, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewCheckpointer(vcs, zap.New(core)), logs
}

func TestCheckpointer_Success(t *testing.T) {
	vcs := &fakeVCS{}
	cp, logs := newTestCheckpointer(vcs)

	out := cp.Checkpoint(context.Background(), 5, "05-deploy")

	require.NoError(t, out.Err)
	assert.True(t, out.Committed)
	assert.True(t, out.Pushed)
	assert.Equal(t, []string{"stage", "commit", "push"}, vcs.calls)
	require.Len(t, vcs.messages, 1)
	assert.Contains(t, vcs.messages[0], "checkpoint after 5 completed tasks")
	assert.Contains(t, vcs.messages[0], "Last task: 05-deploy")

	for _, msg := range []string{"staged all changes", "committed", "pushed"} {
		assert.Equal(t, 1, logs.FilterMessage(msg).Len(), msg)
	}
}

func TestCheckpointer_PushFailureIsWarning(t *testing.T) {
	vcs := &fakeVCS{pushErr: errors.New("network unreachable")}
	cp, logs := newTestCheckpointer(vcs)

	out := cp.Checkpoint(context.Background(), 10, "10-docs")

	assert.True(t, out.Committed)
	assert.False(t, out.Pushed)
	assert.Equal(t, failure.PushFailure, failure.KindOf(out.Err))
	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "push failed")
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestCheckpointer_StageFailure(t *testing.T) {
	vcs := &fakeVCS{stageErr: errors.New("index locked")}
	cp, logs := newTestCheckpointer(vcs)

	out := cp.Checkpoint(context.Background(), 5, "05-deploy")

	assert.False(t, out.Committed)
	assert.Equal(t, failure.CheckpointFailure, failure.KindOf(out.Err))
	assert.Equal(t, []string{"stage"}, vcs.calls)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestCheckpointer_CommitFailure(t *testing.T) {
	vcs := &fakeVCS{commitErr: errors.New("object store full")}
	cp, _ := newTestCheckpointer(vcs)

	out := cp.Checkpoint(context.Background(), 5, "05-deploy")

	assert.False(t, out.Committed)
	assert.Equal(t, failure.CheckpointFailure, failure.KindOf(out.Err))
	assert.Equal(t, []string{"stage", "commit"}, vcs.calls)
}

func TestCheckpointer_NothingToCommit(t *testing.T) {
	vcs := &fakeVCS{commitErr: ErrNothingToCommit}
	cp, _ := newTestCheckpointer(vcs)

	out := cp.Checkpoint(context.Background(), 5, "05-deploy")

	assert.NoError(t, out.Err)
	assert.False(t, out.Committed)
	assert.Equal(t, []string{"stage", "commit"}, vcs.calls)
}

func TestCheckpointer_RealRepo(t *testing.T) {
	dir := setupTestRepo(t)
	writeFile(t, dir, "out.txt", "generated")
	cp, _ := newTestCheckpointer(openRepo(t, dir))

	out := cp.Checkpoint(context.Background(), 1, "01-setup")

	assert.True(t, out.Committed)
	assert.Equal(t, failure.PushFailure, failure.KindOf(out.Err), "no remote configured")
}

func TestCommitMessage(t *testing.T) {
	assert.Equal(t, "baton: checkpoint after 1 completed task\n\nCompleted: 1\nLast task: 01-setup\n", CommitMessage(1, "01-setup"))
	assert.Contains(t, CommitMessage(12, "12-final"), "after 12 completed tasks")
}
