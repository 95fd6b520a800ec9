package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderProgressPanel())

	columnWidth := (m.width - 4) / 2
	sections = append(sections, lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderStatsPanel(columnWidth),
		"  ",
		m.renderLogsPanel(columnWidth),
	))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("q quit • ? help"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	status := m.spinner.View() + " fetching"
	switch {
	case m.summary != nil && m.summary.Interrupted:
		status = warningStyle.Render("interrupted")
	case m.summary != nil:
		status = successStyle.Render("complete")
	case m.quitting:
		status = warningStyle.Render("stopping")
	}
	return headerStyle.Render("catalogfetch") + " " + status
}

func (m *Model) renderProgressPanel() string {
	title := titleStyle.Render(" PROGRESS ")

	batch := fmt.Sprintf("%s %s",
		statsLabelStyle.Render("Batch:"),
		statsValueStyle.Render(fmt.Sprintf("%d/%d (%d/%d in batch)", m.batch, m.totalBatches, m.batchDone, m.batchSize)))
	overall := fmt.Sprintf("%s %s",
		statsLabelStyle.Render("Overall:"),
		statsValueStyle.Render(fmt.Sprintf("%d/%d", m.Done(), m.totalIDs)))

	return panelStyle.Width(m.width - 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, m.bar.View(), batch+"   "+overall),
	)
}

func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" STATS ")

	elapsed := time.Since(m.startTime)
	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(formatDuration(elapsed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("ETA:"), statsValueStyle.Render(formatDuration(m.ETA()))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Fetched:"), successStyle.Render(fmt.Sprintf("%d", m.succeeded))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Failed:"), failureStyle(m.failed, m.Done()).Render(fmt.Sprintf("%d", m.failed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("In flight:"), statsValueStyle.Render(fmt.Sprintf("%d", m.inflight))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Retries:"), statsValueStyle.Render(fmt.Sprintf("%d", m.retries))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Rate limited:"), statsValueStyle.Render(fmt.Sprintf("%d", m.rateLimited))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Throughput:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s", m.Throughput()))),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" ACTIVITY ")

	start := len(m.logMessages) - 8
	if start < 0 {
		start = 0
	}

	maxMsgLen := width - 25
	if maxMsgLen < 10 {
		maxMsgLen = 10
	}

	var logs []string
	for _, entry := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(entry.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(entry.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", entry.Level))

		text := entry.Message
		if len(text) > maxMsgLen {
			text = text[:maxMsgLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(text)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No activity yet...")
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  q / ctrl+c  stop after the current batch
  ctrl+l      clear activity
  ?           toggle this help

  ` + successStyle.Render("green") + `  batch written and checkpointed
  ` + warningStyle.Render("orange") + ` rate limited, waiting before retry
  ` + errorStyle.Render("red") + `    identifier failed or storage error
`
	return panelStyle.Width(m.width - 2).Render(help)
}
