package tui

import (
	"fmt"
	"time"

	"catalogfetch/pkg/catalog"
	"catalogfetch/pkg/models"
	"catalogfetch/pkg/pipeline"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Message types for the TUI

// AttemptStartedMsg is sent when a request is issued
type AttemptStartedMsg struct {
	ID      string
	Attempt int
}

// AttemptFinishedMsg is sent when a request returns
type AttemptFinishedMsg struct {
	ID      string
	Attempt int
	Kind    catalog.OutcomeKind
	Status  int
}

// RetryMsg is sent when a retry is scheduled
type RetryMsg struct {
	ID      string
	Attempt int
	Reason  catalog.OutcomeKind
	Wait    time.Duration
}

// FinishedMsg is sent when an identifier reaches a terminal state
type FinishedMsg struct {
	Result models.Result
}

// BatchStartedMsg is sent when a batch begins
type BatchStartedMsg struct {
	Number int
	Total  int
	Size   int
}

// BatchCompletedMsg is sent after a batch was written and checkpointed
type BatchCompletedMsg struct {
	Report pipeline.BatchReport
}

// RunCompletedMsg is sent once at the end of a run
type RunCompletedMsg struct {
	Summary pipeline.Summary
}

// TickMsg is sent periodically to refresh elapsed time and ETA
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = clamp(msg.Width-20, 10, 80)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		updated, cmd := m.bar.Update(msg)
		if bar, ok := updated.(progress.Model); ok {
			m.bar = bar
		}
		return m, cmd

	case TickMsg:
		if m.summary != nil {
			return m, nil
		}
		return m, tickCmd()

	case AttemptStartedMsg:
		m.inflight++
		return m, nil

	case AttemptFinishedMsg:
		if m.inflight > 0 {
			m.inflight--
		}
		if msg.Kind == catalog.RateLimited {
			m.rateLimited++
		}
		return m, nil

	case RetryMsg:
		m.retries++
		if msg.Reason == catalog.RateLimited {
			m.AddLogMessage("WARN", fmt.Sprintf("%s rate limited, retry %d in %s", msg.ID, msg.Attempt+1, msg.Wait))
		}
		return m, nil

	case FinishedMsg:
		m.batchDone++
		if msg.Result.Failed() {
			m.failed++
			m.AddLogMessage("ERROR", fmt.Sprintf("%s: %s", msg.Result.ID, msg.Result.Failure.Error))
		} else {
			m.succeeded++
		}
		return m, m.bar.SetPercent(m.Fraction())

	case BatchStartedMsg:
		m.batch = msg.Number
		m.totalBatches = msg.Total
		m.batchSize = msg.Size
		m.batchDone = 0
		return m, nil

	case BatchCompletedMsg:
		m.batchesCompleted++
		r := msg.Report
		switch {
		case r.WriteError != nil:
			m.AddLogMessage("ERROR", fmt.Sprintf("batch %d not written: %v", r.Number, r.WriteError))
		case r.CheckpointError != nil:
			m.AddLogMessage("ERROR", fmt.Sprintf("batch %d checkpoint failed: %v", r.Number, r.CheckpointError))
		default:
			m.AddLogMessage("SUCCESS", fmt.Sprintf("batch %d/%d: %d ok, %d failed", r.Number, r.Total, r.Succeeded, r.Failed))
		}
		return m, nil

	case RunCompletedMsg:
		summary := msg.Summary
		m.summary = &summary
		m.AddLogMessage("INFO", fmt.Sprintf("run finished: %d fetched, %d failed", summary.Succeeded, summary.Failed))
		return m, tea.Quit
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if !m.quitting {
			m.quitting = true
			m.AddLogMessage("WARN", "Stopping after the current batch")
			if m.onQuit != nil {
				m.onQuit()
			}
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
