package cli

import (
	"time"

	"github.com/pablasso/baton/internal/config"
	"github.com/pablasso/baton/internal/logging"
	"github.com/pablasso/baton/internal/orchestrator"
	"github.com/pablasso/baton/internal/status"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app is the wiring shared by every command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *status.Store
	orch   *orchestrator.Orchestrator
	close  func() error
}

// loadApp reads configuration, applies flag overrides and opens the
// logger and status store.
func loadApp(cmd *cobra.Command, opts *options) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.tasksDir != "" {
		cfg.TasksDir = opts.tasksDir
	}
	if opts.noCheckpoint {
		cfg.Checkpoint.Enabled = false
	}
	if err := cfg.EnsureStateDir(); err != nil {
		return nil, err
	}

	logger, closeFn, err := logging.NewWithClock(cfg.Log, cfg.LogDir(), zapcore.AddSync(cmd.ErrOrStderr()), time.Now)
	if err != nil {
		return nil, err
	}

	store := status.NewStore(cfg.StatusFile(), logger)
	store.Load()

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		orch:   orchestrator.New(cfg, store, logger),
		close:  closeFn,
	}, nil
}

// withLock runs fn while holding the run lock of the state directory. The
// status table is reloaded once the lock is held so fn never works on a
// table another run has since rewritten.
func (a *app) withLock(fn func() error) error {
	lock := status.NewRunLock(a.cfg.StateDir)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			a.logger.Warn("failed to release run lock", zap.Error(err))
		}
	}()
	a.store.Load()
	return fn()
}
