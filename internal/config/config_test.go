package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "tasks", cfg.TasksDir)
	assert.Equal(t, ".md", cfg.TaskExt)
	assert.Equal(t, ".baton", cfg.StateDir)
	assert.Equal(t, "claude", cfg.Tool.Command)
	assert.Equal(t, "-p", cfg.Tool.PromptFlag)
	assert.Equal(t, []string{"--dangerously-skip-permissions"}, cfg.Tool.Args)
	assert.Equal(t, 3*time.Minute, cfg.Tool.Timeout)
	assert.Equal(t, 10*1024*1024, cfg.Tool.MaxOutputBytes)
	assert.Equal(t, 3*time.Second, cfg.Run.SectionDelay)
	assert.Equal(t, 5*time.Second, cfg.Run.TaskDelay)
	assert.True(t, cfg.Checkpoint.Enabled)
	assert.Equal(t, 5, cfg.Checkpoint.Interval)
	assert.Equal(t, "origin", cfg.Checkpoint.Remote)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, filepath.Join(".baton", "status.json"), cfg.StatusFile())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := chdirTemp(t)
	content := `
tasks_dir: prompts
tool:
  command: mytool
  timeout: 90s
checkpoint:
  enabled: false
  interval: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(content), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "prompts", cfg.TasksDir)
	assert.Equal(t, "mytool", cfg.Tool.Command)
	assert.Equal(t, 90*time.Second, cfg.Tool.Timeout)
	assert.False(t, cfg.Checkpoint.Enabled)
	assert.Equal(t, 2, cfg.Checkpoint.Interval)
	// untouched keys keep their defaults
	assert.Equal(t, "-p", cfg.Tool.PromptFlag)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte("tool:\n  timeout: 90s\n"), 0644))
	t.Setenv("BATON_TOOL_TIMEOUT", "45s")
	t.Setenv("BATON_TASKS_DIR", "from-env")
	t.Setenv("BATON_TOOL_MAX_OUTPUT_BYTES", "2048")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Tool.Timeout)
	assert.Equal(t, "from-env", cfg.TasksDir)
	assert.Equal(t, 2048, cfg.Tool.MaxOutputBytes)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	chdirTemp(t)

	_, err := Load("does-not-exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "empty command", content: "tool:\n  command: \"\"\n", wantErr: "tool.command"},
		{name: "zero interval", content: "checkpoint:\n  interval: 0\n", wantErr: "checkpoint.interval"},
		{name: "bad level", content: "log:\n  level: loud\n", wantErr: "log.level"},
		{name: "bad extension", content: "task_ext: md\n", wantErr: "task_ext"},
		{name: "negative delay", content: "run:\n  task_delay: -1s\n", wantErr: "run delays"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chdirTemp(t)
			path := filepath.Join(dir, "custom.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "tool.timeout", envKey("BATON_TOOL_TIMEOUT"))
	assert.Equal(t, "tool.max_output_bytes", envKey("BATON_TOOL_MAX_OUTPUT_BYTES"))
	assert.Equal(t, "state_dir", envKey("BATON_STATE_DIR"))
	assert.Equal(t, "checkpoint.author_email", envKey("BATON_CHECKPOINT_AUTHOR_EMAIL"))
}

func TestEnsureStateDir(t *testing.T) {
	dir := chdirTemp(t)
	cfg, err := Load("")
	require.NoError(t, err)

	require.NoError(t, cfg.EnsureStateDir())
	assert.DirExists(t, filepath.Join(dir, ".baton", "logs", "sections"))
}
