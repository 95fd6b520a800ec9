package tui

import (
	"time"

	"catalogfetch/pkg/catalog"
	"catalogfetch/pkg/models"
	"catalogfetch/pkg/pipeline"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI is a full-screen dashboard for a fetch run. It implements
// pipeline.Observer by forwarding every event to the bubbletea program.
type TUI struct {
	program *tea.Program
	model   *Model
}

var _ pipeline.Observer = (*TUI)(nil)

// NewTUI creates a dashboard for totalIDs identifiers; onQuit runs when the
// user presses q
func NewTUI(totalIDs int, onQuit func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(totalIDs, onQuit)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	program := tea.NewProgram(&model, opts...)

	return &TUI{
		program: program,
		model:   &model,
	}
}

// Start runs the program until the run completes or the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI
func (t *TUI) Stop() {
	t.program.Quit()
}

// Wait blocks until the program has exited
func (t *TUI) Wait() {
	t.program.Wait()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TUI) AttemptStarted(id string, attempt int) {
	t.Send(AttemptStartedMsg{ID: id, Attempt: attempt})
}

func (t *TUI) AttemptFinished(id string, attempt int, outcome catalog.Outcome, elapsed time.Duration) {
	t.Send(AttemptFinishedMsg{ID: id, Attempt: attempt, Kind: outcome.Kind, Status: outcome.Status})
}

func (t *TUI) RetryScheduled(id string, attempt int, reason catalog.OutcomeKind, wait time.Duration) {
	t.Send(RetryMsg{ID: id, Attempt: attempt, Reason: reason, Wait: wait})
}

func (t *TUI) Finished(result models.Result) {
	t.Send(FinishedMsg{Result: result})
}

func (t *TUI) BatchStarted(number, total, size int) {
	t.Send(BatchStartedMsg{Number: number, Total: total, Size: size})
}

func (t *TUI) BatchCompleted(report pipeline.BatchReport) {
	t.Send(BatchCompletedMsg{Report: report})
}

func (t *TUI) RunCompleted(summary pipeline.Summary) {
	t.Send(RunCompletedMsg{Summary: summary})
}
