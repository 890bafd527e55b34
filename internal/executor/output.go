package executor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// cappedBuffer collects output up to limit bytes and silently discards the
// rest. Writes always report full length so the child never sees EPIPE.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}

// SectionLogID names the log artifact of one section. Reruns of the same
// section reuse the name.
func SectionLogID(taskID string, section int) string {
	return fmt.Sprintf("%s-section-%02d", taskID, section)
}

// SectionLogPath returns the artifact path for logID inside dir.
func SectionLogPath(dir, logID string) string {
	return filepath.Join(dir, logID+".log")
}

// writeSectionLog overwrites the artifact for one invocation.
func writeSectionLog(path string, res Result, stdout, stderr string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var sb strings.Builder
	switch {
	case res.Success:
		sb.WriteString("status: success\n")
	case res.TimedOut:
		sb.WriteString("status: timeout\n")
	default:
		sb.WriteString("status: failure\n")
	}
	if res.ExitCode != nil {
		fmt.Fprintf(&sb, "exit_code: %d\n", *res.ExitCode)
	}
	fmt.Fprintf(&sb, "duration: %s\n", res.Duration.Round(time.Millisecond))
	if res.Truncated {
		sb.WriteString("truncated: true\n")
	}
	if res.Err != nil {
		fmt.Fprintf(&sb, "error: %v\n", res.Err)
	}
	sb.WriteString("\n--- stdout ---\n")
	sb.WriteString(stdout)
	if stderr != "" {
		sb.WriteString("\n--- stderr ---\n")
		sb.WriteString(stderr)
	}
	if !strings.HasSuffix(sb.String(), "\n") {
		sb.WriteString("\n")
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}
