package tui

import (
	"fmt"
	"time"

	"catalogfetch/pkg/pipeline"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model is the dashboard state. It is only mutated from Update, which
// bubbletea calls from a single goroutine.
type Model struct {
	// UI components
	spinner spinner.Model
	bar     progress.Model

	// Run state
	totalIDs         int
	batch            int
	totalBatches     int
	batchSize        int
	batchDone        int
	batchesCompleted int
	inflight         int

	// Stats
	succeeded   int
	failed      int
	retries     int
	rateLimited int
	startTime   time.Time
	summary     *pipeline.Summary

	// UI state
	width          int
	height         int
	showHelp       bool
	quitting       bool
	logMessages    []LogMessage
	maxLogMessages int

	onQuit func()
}

// LogMessage is one line in the activity panel
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a dashboard for a run over totalIDs identifiers. onQuit
// is called once when the user quits; it usually cancels the run.
func NewModel(totalIDs int, onQuit func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accentCyan)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return Model{
		spinner:        s,
		bar:            bar,
		totalIDs:       totalIDs,
		startTime:      time.Now(),
		maxLogMessages: 50,
		onQuit:         onQuit,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// AddLogMessage appends a line to the activity panel
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = alertRed
	case "WARN":
		color = accentOrange
	case "SUCCESS":
		color = accentGreen
	case "INFO":
		color = accentCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Done returns how many identifiers reached a terminal state
func (m *Model) Done() int {
	return m.succeeded + m.failed
}

// Fraction returns overall progress in [0, 1]
func (m *Model) Fraction() float64 {
	if m.totalIDs <= 0 {
		if m.summary != nil {
			return 1
		}
		return 0
	}
	f := float64(m.Done()) / float64(m.totalIDs)
	if f > 1 {
		return 1
	}
	return f
}

// Throughput returns finished identifiers per second
func (m *Model) Throughput() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.Done()) / elapsed
}

// ETA estimates the remaining run time at the current throughput
func (m *Model) ETA() time.Duration {
	rate := m.Throughput()
	remaining := m.totalIDs - m.Done()
	if rate <= 0 || remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/rate) * time.Second
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
