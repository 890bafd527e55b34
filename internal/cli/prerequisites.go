package cli

import (
	"fmt"
	"os/exec"

	"github.com/pablasso/baton/internal/config"
	"github.com/pablasso/baton/internal/git"
)

// PrerequisiteError represents a failed prerequisite check with helpful remediation info.
type PrerequisiteError struct {
	Check   string
	Message string
	Help    string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("%s: %s\n\n%s", e.Check, e.Message, e.Help)
}

// checkPrerequisites validates the environment before a run.
func checkPrerequisites(cfg *config.Config, workDir string) error {
	if err := checkTool(cfg.Tool.Command); err != nil {
		return err
	}
	if cfg.Checkpoint.Enabled {
		if err := checkGitRepo(workDir); err != nil {
			return err
		}
	}
	return nil
}

// checkTool verifies the external tool can be found.
func checkTool(command string) error {
	if _, err := exec.LookPath(command); err != nil {
		return &PrerequisiteError{
			Check:   "External tool",
			Message: fmt.Sprintf("%q not found on PATH", command),
			Help:    "Install the tool or set tool.command in baton.yaml (or BATON_TOOL_COMMAND).",
		}
	}
	return nil
}

// checkGitRepo verifies we're in a git repository.
func checkGitRepo(dir string) error {
	if !git.IsRepo(dir) {
		return &PrerequisiteError{
			Check:   "Git repository",
			Message: "Not a git repository",
			Help:    "Checkpoints require a git repository. Run 'git init' first, or pass --no-checkpoint.",
		}
	}
	return nil
}
