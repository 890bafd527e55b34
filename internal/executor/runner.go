package executor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pablasso/baton/internal/config"
	"github.com/pablasso/baton/internal/failure"
	"github.com/pablasso/baton/internal/logging"
	"go.uber.org/zap"
)

// waitDelay bounds how long Wait blocks on inherited pipes after the
// process is killed.
const waitDelay = 5 * time.Second

// ToolRunner runs the configured external tool as a blocking subprocess.
type ToolRunner struct {
	tool   config.Tool
	host   Host
	logDir string
	logger *zap.Logger
}

// NewToolRunner creates a runner writing section logs into logDir.
func NewToolRunner(tool config.Tool, logDir string, logger *zap.Logger) *ToolRunner {
	return &ToolRunner{
		tool:   tool,
		host:   DetectHost(tool.ArgLimit),
		logDir: logDir,
		logger: logging.OrNop(logger).Named("executor"),
	}
}

// WithHost overrides the detected platform strategy (useful for testing).
func (r *ToolRunner) WithHost(h Host) *ToolRunner {
	r.host = h
	return r
}

// Run executes one instruction. The instruction is always written to a
// temporary artifact first, and the artifact is removed before returning.
func (r *ToolRunner) Run(ctx context.Context, instruction, logID string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = r.tool.Timeout
	}
	log := r.logger.With(zap.String("section_log", logID))

	artifact, err := writeArtifact(instruction)
	if err != nil {
		res := Result{Err: failure.New(failure.SectionProcessFailure, "write instruction", err)}
		r.persist(log, logID, res, "", "")
		return res
	}
	defer os.Remove(artifact)

	inv := r.host.Plan(r.tool, instruction)
	log.Debug("invoking tool",
		zap.String("command", inv.Name),
		zap.Bool("stdin", inv.Stdin),
		zap.Int("instruction_bytes", len(instruction)),
		zap.Duration("timeout", timeout))

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := CommandContext(runCtx, inv.Name, inv.Args...)
	cmd.WaitDelay = waitDelay
	stdout := newCappedBuffer(r.tool.MaxOutputBytes)
	stderr := newCappedBuffer(r.tool.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if inv.Stdin {
		f, err := os.Open(artifact)
		if err != nil {
			res := Result{Err: failure.New(failure.SectionProcessFailure, "open instruction", err)}
			r.persist(log, logID, res, "", "")
			return res
		}
		defer f.Close()
		cmd.Stdin = f
	}

	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Output:    stdout.String(),
		Truncated: stdout.truncated || stderr.truncated,
		Duration:  time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		res.Success = true
		code := 0
		res.ExitCode = &code
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.TimedOut = true
		res.Err = failure.Errorf(failure.SectionTimeout, "run tool", "timed out after %s", timeout)
		log.Warn("tool timed out", zap.Duration("timeout", timeout))
	case errors.As(runErr, &exitErr) && exitErr.ExitCode() >= 0:
		code := exitErr.ExitCode()
		res.ExitCode = &code
		res.Err = failure.Errorf(failure.SectionProcessFailure, "run tool", "exited with code %d%s", code, diagnostic(stderr.String()))
	default:
		res.Err = failure.New(failure.SectionProcessFailure, "run tool", runErr)
	}

	r.persist(log, logID, res, stdout.String(), stderr.String())
	return res
}

func (r *ToolRunner) persist(log *zap.Logger, logID string, res Result, stdout, stderr string) {
	path := SectionLogPath(r.logDir, logID)
	if err := writeSectionLog(path, res, stdout, stderr); err != nil {
		log.Warn("failed to write section log", zap.String("path", path), zap.Error(err))
	}
}

func writeArtifact(instruction string) (string, error) {
	f, err := os.CreateTemp("", "baton-instruction-*.txt")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(instruction); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// diagnostic returns a short stderr excerpt for error messages.
func diagnostic(stderr string) string {
	const limit = 200
	stderr = strings.TrimRight(stderr, "\r\n ")
	if stderr == "" {
		return ""
	}
	if len(stderr) > limit {
		stderr = stderr[len(stderr)-limit:]
		for len(stderr) > 0 && !utf8.RuneStart(stderr[0]) {
			stderr = stderr[1:]
		}
	}
	return ": " + stderr
}
