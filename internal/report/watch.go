package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pablasso/baton/internal/orchestrator"
)

// LoadFunc returns the current task views.
type LoadFunc func() ([]orchestrator.TaskView, error)

// refreshMsg triggers a reload of the task views.
type refreshMsg time.Time

// WatchModel is a Bubble Tea model that re-renders the report on an interval.
type WatchModel struct {
	load     LoadFunc
	interval time.Duration
	spinner  spinner.Model

	views   []orchestrator.TaskView
	err     error
	updated time.Time
}

// NewWatchModel creates a WatchModel that calls load every interval.
func NewWatchModel(load LoadFunc, interval time.Duration) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = runningStyle
	return WatchModel{load: load, interval: interval, spinner: s}
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refreshNow)
}

func (m WatchModel) refreshNow() tea.Msg {
	return refreshMsg(time.Now())
}

func (m WatchModel) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case refreshMsg:
		m.views, m.err = m.load()
		m.updated = time.Time(msg)
		return m, m.tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m WatchModel) View() string {
	var sb strings.Builder
	if m.err != nil {
		sb.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		sb.WriteString("\n\n")
	} else {
		sb.WriteString(String(m.views))
		sb.WriteString("\n")
	}
	footer := fmt.Sprintf("refreshing every %s • q to quit", m.interval)
	if !m.updated.IsZero() {
		footer = fmt.Sprintf("updated %s • %s", m.updated.Format("15:04:05"), footer)
	}
	sb.WriteString(m.spinner.View() + " " + subtleStyle.Render(footer))
	sb.WriteString("\n")
	return sb.String()
}

// Watch runs the live report until the user quits.
func Watch(in io.Reader, out io.Writer, load LoadFunc, interval time.Duration) error {
	p := tea.NewProgram(
		NewWatchModel(load, interval),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
