// Package report renders the read-only status report, one line per task.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/pablasso/baton/internal/orchestrator"
)

const (
	barWidth    = 20
	maxErrorLen = 80
)

// Render writes the report for views to w.
func Render(w io.Writer, views []orchestrator.TaskView) error {
	_, err := io.WriteString(w, String(views))
	return err
}

// String returns the rendered report.
func String(views []orchestrator.TaskView) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Task status"))
	sb.WriteString("\n\n")

	if len(views) == 0 {
		sb.WriteString(subtleStyle.Render("No tasks found."))
		sb.WriteString("\n")
		return sb.String()
	}

	width := 0
	for _, v := range views {
		width = max(width, lipgloss.Width(v.ID))
	}

	bar := progress.New(
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
		progress.WithSolidFill(string(primaryColor)),
	)

	counts := make(map[orchestrator.State]int)
	for _, v := range views {
		counts[v.State]++
		sb.WriteString(Line(v, width, bar))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(subtleStyle.Render(fmt.Sprintf(
		"%d tasks: %d succeeded, %d failed, %d blocked, %d in progress, %d pending",
		len(views),
		counts[orchestrator.StateSucceeded],
		counts[orchestrator.StateFailed],
		counts[orchestrator.StateBlocked],
		counts[orchestrator.StateInProgress],
		counts[orchestrator.StatePending],
	)))
	sb.WriteString("\n")
	return sb.String()
}

// Line renders one task. width pads the task ID column.
func Line(v orchestrator.TaskView, width int, bar progress.Model) string {
	icon, label, style := stateStyle(v.State)
	id := idStyle.Render(v.ID + strings.Repeat(" ", max(0, width-lipgloss.Width(v.ID))))

	parts := []string{style.Render(icon), id, style.Render(fmt.Sprintf("%-11s", label))}
	if v.Title != "" && v.Title != v.ID {
		parts = append(parts, v.Title)
	}
	if detail := detailFor(v, bar); detail != "" {
		parts = append(parts, subtleStyle.Render(detail))
	}
	return strings.Join(parts, " ")
}

func stateStyle(s orchestrator.State) (string, string, lipgloss.Style) {
	switch s {
	case orchestrator.StateSucceeded:
		return "✓", "succeeded", successStyle
	case orchestrator.StateFailed:
		return "✗", "failed", errorStyle
	case orchestrator.StateBlocked:
		return "⊘", "blocked", warningStyle
	case orchestrator.StateInProgress:
		return "▶", "in progress", runningStyle
	default:
		return "○", "pending", subtleStyle
	}
}

func detailFor(v orchestrator.TaskView, bar progress.Model) string {
	st := v.Status
	switch v.State {
	case orchestrator.StateInProgress:
		if st.TotalSections == 0 {
			return ""
		}
		fraction := float64(st.CompletedSections) / float64(st.TotalSections)
		return fmt.Sprintf("%s %d/%d sections", bar.ViewAs(fraction), st.CompletedSections, st.TotalSections)
	case orchestrator.StateFailed:
		msg := truncate(st.Error, maxErrorLen)
		if st.SectionReached > 0 {
			return fmt.Sprintf("section %d/%d, attempt %d: %s", st.SectionReached, st.TotalSections, st.Attempts, msg)
		}
		return fmt.Sprintf("attempt %d: %s", st.Attempts, msg)
	case orchestrator.StateBlocked:
		return st.BlockedReason
	case orchestrator.StateSucceeded:
		if st.Attempts > 1 {
			return fmt.Sprintf("%d sections, %d attempts", st.TotalSections, st.Attempts)
		}
		return fmt.Sprintf("%d sections", st.TotalSections)
	}
	return ""
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
