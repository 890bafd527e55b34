package cli

import (
	"bytes"
	"testing"

	"github.com/pablasso/baton/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLock_ReloadsStatus(t *testing.T) {
	setupProject(t, "echo ok", "01-setup", "02-api")
	cmd := NewRootCmd()
	cmd.SetErr(&bytes.Buffer{})

	a, err := loadApp(cmd, &options{noCheckpoint: true})
	require.NoError(t, err)
	defer a.close()
	_, known := a.store.Get("01-setup")
	require.False(t, known)

	// another run finishes after the table was loaded
	other := status.NewStore(a.cfg.StatusFile(), nil)
	_, err = other.MarkStarted("01-setup", 1, 0)
	require.NoError(t, err)
	require.NoError(t, other.MarkSectionCompleted("01-setup", 1))
	require.NoError(t, other.MarkFinished("01-setup", true, "", 1))
	require.NoError(t, other.MarkBlocked("02-api", "blocked by 01-setup"))

	var cleared int
	require.NoError(t, a.withLock(func() error {
		var err error
		cleared, err = a.orch.ClearBlocked()
		return err
	}))

	assert.Equal(t, 1, cleared)
	reloaded := status.NewStore(a.cfg.StatusFile(), nil)
	reloaded.Load()
	assert.True(t, reloaded.Succeeded("01-setup"), "progress written by the other run survives")
}
