package tui

import (
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type stopSpinnerMsg struct{}

// SpinnerModel is a single-line bubbletea model showing a spinner next to a
// message until it receives a stop message.
type SpinnerModel struct {
	spinner spinner.Model
	message string
	done    bool
}

// NewSpinnerModel creates a spinner model for message.
func NewSpinnerModel(message string, styles Styles) SpinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Status
	return SpinnerModel{spinner: s, message: message}
}

// Init starts the spinner ticking (required by Bubble Tea)
func (m SpinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles ticks and the stop message (required by Bubble Tea)
func (m SpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stopSpinnerMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// View renders the spinner line; it is empty once stopped so the line clears.
func (m SpinnerModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + m.message
}

// Done reports whether the spinner was stopped.
func (m SpinnerModel) Done() bool {
	return m.done
}

// StartSpinner runs a spinner program on out and returns a function that
// stops it and waits for the terminal line to be cleared. The stop function
// is safe to call more than once.
func StartSpinner(out io.Writer, message string, styles Styles) func() {
	program := tea.NewProgram(
		NewSpinnerModel(message, styles),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_, _ = program.Run()
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			program.Send(stopSpinnerMsg{})
			<-finished
		})
	}
}
