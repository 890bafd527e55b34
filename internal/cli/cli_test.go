package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/pablasso/baton/internal/executor"
	"github.com/pablasso/baton/internal/failure"
	"github.com/pablasso/baton/internal/status"
	"github.com/pablasso/baton/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `tool:
  command: sh
run:
  section_delay: 0s
  task_delay: 0s
log:
  level: debug
`

const taskFile = `# %s

## Prompt
>>> SECTION Implement the first half of %s
first half

>>> SECTION Implement the second half of %s
second half
`

func setupProject(t *testing.T, script string, ids ...string) string {
	t.Helper()
	dir := testutil.SetupTestDir(t)
	testutil.WriteFile(t, dir, "baton.yaml", testConfig)
	for _, id := range ids {
		testutil.WriteFile(t, dir, filepath.Join("tasks", id+".md"), strings.ReplaceAll(taskFile, "%s", id))
	}

	orig := executor.CommandContext
	executor.CommandContext = testutil.ShellCommandFunc(script)
	t.Cleanup(func() { executor.CommandContext = orig })
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestPrerequisiteError(t *testing.T) {
	err := &PrerequisiteError{
		Check:   "Test Check",
		Message: "Something went wrong",
		Help:    "Try doing X to fix it.",
	}

	assert.Equal(t, "Test Check: Something went wrong\n\nTry doing X to fix it.", err.Error())
}

func TestCheckGitRepo(t *testing.T) {
	dir := t.TempDir()
	var prereqErr *PrerequisiteError
	require.ErrorAs(t, checkGitRepo(dir), &prereqErr)
	assert.Equal(t, "Not a git repository", prereqErr.Message)

	_, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	assert.NoError(t, checkGitRepo(dir))
}

func TestCheckTool(t *testing.T) {
	assert.NoError(t, checkTool("sh"))

	var prereqErr *PrerequisiteError
	require.ErrorAs(t, checkTool("baton-test-no-such-tool"), &prereqErr)
	assert.Equal(t, "External tool", prereqErr.Check)
}

func TestRun_AllTasksSucceed(t *testing.T) {
	dir := setupProject(t, "echo ok", "01-setup", "02-api")

	stdout, stderr, err := execute(t, "run", "--no-checkpoint")

	require.NoError(t, err)
	assert.Contains(t, stdout, "processed 2, completed 2, failed 0, skipped 0")
	assert.Contains(t, stderr, "run finished")
	assert.FileExists(t, filepath.Join(dir, ".baton", "status.json"))
	assert.FileExists(t, filepath.Join(dir, ".baton", "progress.log"))
	assert.FileExists(t, filepath.Join(dir, ".baton", "logs", "sections", "02-api-section-02.log"))
	assert.NoFileExists(t, filepath.Join(dir, ".baton", "run.lock"))

	stdout, _, err = execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 tasks: 2 succeeded")
}

func TestRun_IsDefaultCommand(t *testing.T) {
	setupProject(t, "echo ok", "01-setup")

	stdout, _, err := execute(t, "--no-checkpoint")

	require.NoError(t, err)
	assert.Contains(t, stdout, "completed 1")
}

func TestRun_CheckpointsToGit(t *testing.T) {
	dir := setupProject(t, "echo generated > output.txt", "01-setup", "02-api")
	_, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	_, stderr, err := execute(t, "run")

	require.NoError(t, err, "push failure must not fail the run")
	assert.Contains(t, stderr, "push failed")

	repo, err := gogit.PlainOpen(dir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	commit, err := repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Contains(t, commit.Message, "checkpoint after 2 completed tasks")
	assert.Contains(t, commit.Message, "Last task: 02-api")
	assert.Equal(t, "baton", commit.Author.Name)
}

func TestRun_HaltClearAndReset(t *testing.T) {
	dir := setupProject(t, "echo broken >&2; exit 1", "01-setup", "02-api", "03-ui")

	stdout, _, err := execute(t, "run", "--no-checkpoint")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run halted at 01-setup")
	assert.Contains(t, stdout, "failed 1")

	stdout, _, err = execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 failed, 2 blocked")

	stdout, _, err = execute(t, "clear-blocked")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cleared 2 blocked task(s).")

	stdout, _, err = execute(t, "reset")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Status reset.")
	assert.NoFileExists(t, filepath.Join(dir, ".baton", "status.json"))
}

func TestRun_MissingTasksDir(t *testing.T) {
	setupProject(t, "echo ok")

	_, _, err := execute(t, "run", "--no-checkpoint", "--tasks-dir", "does-not-exist")

	require.Error(t, err)
	assert.Equal(t, failure.CatalogNotFound, failure.KindOf(err))
}

func TestRun_RequiresGitWhenCheckpointing(t *testing.T) {
	setupProject(t, "echo ok", "01-setup")

	_, _, err := execute(t, "run")

	var prereqErr *PrerequisiteError
	require.ErrorAs(t, err, &prereqErr)
	assert.Equal(t, "Git repository", prereqErr.Check)
}

func TestRun_RequiresTool(t *testing.T) {
	setupProject(t, "echo ok", "01-setup")
	t.Setenv("BATON_TOOL_COMMAND", "baton-test-no-such-tool")

	_, _, err := execute(t, "run", "--no-checkpoint")

	var prereqErr *PrerequisiteError
	require.ErrorAs(t, err, &prereqErr)
	assert.Equal(t, "External tool", prereqErr.Check)
}

func TestRun_RefusesConcurrentRun(t *testing.T) {
	dir := setupProject(t, "echo ok", "01-setup")
	testutil.WriteFile(t, dir, filepath.Join(".baton", "run.lock"), strconv.Itoa(os.Getpid()))

	_, _, err := execute(t, "run", "--no-checkpoint")

	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrLocked))
}

func TestRun_ExplicitConfigMustExist(t *testing.T) {
	setupProject(t, "echo ok", "01-setup")

	_, _, err := execute(t, "run", "--config", "missing.yaml")

	assert.Error(t, err)
}

func TestStatus_WatchRejectsInterval(t *testing.T) {
	setupProject(t, "echo ok", "01-setup")

	_, _, err := execute(t, "status", "--watch", "--interval", "0s")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--interval must be positive")
}

func TestVersionCmd(t *testing.T) {
	stdout, _, err := execute(t, "version")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "baton dev"))
}
