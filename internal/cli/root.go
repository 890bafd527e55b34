// Package cli wires the baton command-line interface.
package cli

import (
	"github.com/pablasso/baton/internal/version"
	"github.com/spf13/cobra"
)

// options holds the persistent flags shared by every command.
type options struct {
	configPath   string
	tasksDir     string
	noCheckpoint bool
}

// NewRootCmd builds the command tree. Running baton without a subcommand
// performs a run.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "baton",
		Short: "Sequential task runner for an external CLI tool",
		Long: `Baton feeds an ordered directory of task files, section by section, to an
external command-line tool. Progress is durable across restarts, a failed task
blocks everything after it, and the working tree is checkpointed to git as
tasks complete.`,
		Version:      version.String(),
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasks(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default baton.yaml if present)")
	flags.StringVar(&opts.tasksDir, "tasks-dir", "", "directory holding the task files")
	flags.BoolVar(&opts.noCheckpoint, "no-checkpoint", false, "disable git checkpoints for this invocation")

	root.AddCommand(
		newRunCmd(opts),
		newStatusCmd(opts),
		newResetCmd(opts),
		newClearBlockedCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
