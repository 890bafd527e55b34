package cli

import (
	"fmt"
	"time"

	"github.com/pablasso/baton/internal/orchestrator"
	"github.com/pablasso/baton/internal/report"
	"github.com/pablasso/baton/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *options) *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show one line per task with its current state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if watch {
				if interval <= 0 {
					return fmt.Errorf("--interval must be positive, got %s", interval)
				}
				load := func() ([]orchestrator.TaskView, error) {
					a.store.Load()
					return a.orch.Status()
				}
				return report.Watch(cmd.InOrStdin(), cmd.OutOrStdout(), load, interval)
			}

			views, err := a.orch.Status()
			if err != nil {
				return err
			}
			return report.Render(cmd.OutOrStdout(), views)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep the report open and refresh it while a run progresses")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "refresh interval for --watch")
	return cmd
}

func newResetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard all recorded progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			return a.withLock(func() error {
				if err := a.orch.Reset(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Status reset.")
				return nil
			})
		},
	}
}

func newClearBlockedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-blocked",
		Short: "Remove blocked markers so the next run can resume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			return a.withLock(func() error {
				cleared, err := a.orch.ClearBlocked()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d blocked task(s).\n", cleared)
				return nil
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "baton %s\n", version.String())
		},
	}
}
