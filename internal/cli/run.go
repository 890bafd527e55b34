package cli

import (
	"fmt"
	"os"

	"github.com/pablasso/baton/internal/git"
	"github.com/pablasso/baton/internal/status"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every task that has not yet succeeded (default)",
		Long: `Run the task catalog in order. Completed tasks are skipped, an interrupted
task resumes at its first unfinished section, and the first failure halts the
run and blocks every task after it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasks(cmd, opts)
		},
	}
}

func runTasks(cmd *cobra.Command, opts *options) error {
	a, err := loadApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()

	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := checkPrerequisites(a.cfg, workDir); err != nil {
		return err
	}

	orch := a.orch.WithJournal(status.NewJournal(a.cfg.StateDir))
	if a.cfg.Checkpoint.Enabled {
		repo, err := git.Open(workDir, a.cfg.Checkpoint.Remote, git.Signature{
			Name:  a.cfg.Checkpoint.AuthorName,
			Email: a.cfg.Checkpoint.AuthorEmail,
		})
		if err != nil {
			return err
		}
		a.logger.Debug("checkpoints enabled",
			zap.String("branch", repo.Branch()),
			zap.String("remote", repo.Remote()),
			zap.Int("interval", a.cfg.Checkpoint.Interval))
		orch = orch.WithCheckpointer(git.NewCheckpointer(repo, a.logger))
	}

	return a.withLock(func() error {
		sum, err := orch.Run(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "processed %d, completed %d, failed %d, skipped %d\n",
			sum.Processed, sum.Completed, sum.Failed, sum.Skipped)
		if sum.HaltedAt != "" {
			return fmt.Errorf("run halted at %s; see 'baton status'", sum.HaltedAt)
		}
		return nil
	})
}
