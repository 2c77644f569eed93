package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/altron-go/internal/client"
	"github.com/raphaelgruber/altron-go/internal/models"
)

const pollInterval = time.Second

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"),
	Success: lipgloss.Color("#00D787"),
	Error:   lipgloss.Color("#FF005F"),
	Hint:    lipgloss.Color("#6C6C6C"),
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers polling the job status
type tickMsg time.Time

type jobUpdateMsg struct {
	status *client.JobStatus
	err    error
}

type jobResultMsg struct {
	result *client.JobResult
	err    error
}

// progressModel is the bubbletea model for job progress.
type progressModel struct {
	client   *client.Client
	jobID    string
	status   *client.JobStatus
	result   *client.JobResult
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(c *client.Client, jobID string) progressModel {
	return progressModel{
		client:   c,
		jobID:    jobID,
		progress: progress.New(progress.WithDefaultBlend(), progress.WithWidth(40)),
		theme:    defaultTheme,
	}
}

// Init fetches the status right away, then keeps polling.
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), m.progress.Init())
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchStatus()

	case jobUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch job status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}
		m.status = msg.status
		if m.status.Status.Terminal() {
			return m, m.fetchResult()
		}
		return m, tickCmd()

	case jobResultMsg:
		m.done = true
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch job result: %w", msg.err)
			return m, tea.Quit
		}
		m.result = msg.result
		if m.result.Status == models.JobStatusFailed {
			if m.result.Error != nil {
				m.err = fmt.Errorf("%s", *m.result.Error)
			} else {
				m.err = fmt.Errorf("job failed with unknown error")
			}
		}
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}
	if m.status == nil {
		return "Loading job status...\n"
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.status.Status))
	bar := m.progress.ViewAs(float64(m.status.Progress) / 100)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")
	return fmt.Sprintf("%s %s %3d%%\n%s\n", status, bar, m.status.Progress, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nJob %s continues in background.\nUse 'altron jobs status %s' to check status.\n",
			m.jobID, m.jobID)
		return m.theme.hintStyle().Render(msg)
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Job failed: %s\n", m.err))
	}
	if m.result == nil {
		return m.theme.completedStyle().Render("✓ Done\n")
	}
	if m.result.Status == models.JobStatusTerminated {
		return m.theme.hintStyle().Render("Job terminated\n")
	}

	var b strings.Builder
	b.WriteString(m.theme.completedStyle().Render("✓ Completed"))
	b.WriteString("\n\n")
	if m.result.Text != "" {
		b.WriteString(m.result.Text)
		b.WriteString("\n")
	}
	if n := len(m.result.Images); n > 0 {
		fmt.Fprintf(&b, "\n  %d image(s), see 'altron jobs result %s'\n", n, m.jobID)
	}
	return b.String()
}

// fetchStatus runs as a command so Update never blocks on the network.
func (m progressModel) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		st, err := m.client.JobStatus(ctx, m.jobID)
		return jobUpdateMsg{status: st, err: err}
	}
}

func (m progressModel) fetchResult() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		res, err := m.client.JobResult(ctx, m.jobID)
		return jobResultMsg{result: res, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunJobProgress runs the interactive progress UI for a job.
// Returns nil on success or Ctrl+C (background), error on job failure.
func RunJobProgress(c *client.Client, jobID string) error {
	p := tea.NewProgram(newProgressModel(c, jobID))

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}
	return nil
}
