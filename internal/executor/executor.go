// Package executor runs one section of a task through the external tool.
package executor

import (
	"context"
	"os/exec"
	"time"
)

// CommandContext is the function used to create exec.Cmd instances.
// Tests replace it to script the external tool.
var CommandContext = exec.CommandContext

// Runner executes a single contextual instruction.
type Runner interface {
	// Run invokes the tool once. timeout overrides the configured bound when
	// positive. logID names the per-section log artifact.
	Run(ctx context.Context, instruction, logID string, timeout time.Duration) Result
}

// Result is the outcome of one invocation.
type Result struct {
	Success  bool
	Output   string
	TimedOut bool
	// ExitCode is nil when the process never exited on its own (timeout,
	// start failure).
	ExitCode  *int
	Truncated bool
	Duration  time.Duration
	// Err is a *failure.Error of kind SectionTimeout or
	// SectionProcessFailure when Success is false.
	Err error
}
