package ui

import (
	"context"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/rabbitbrain/internal/logging"
)

// doneMsg reports that the wrapped pipeline returned.
type doneMsg struct{ err error }

// progressModel shows a spinner next to title until the work finishes or
// the user interrupts.
type progressModel struct {
	title    string
	spinner  spinner.Model
	cancel   context.CancelFunc
	done     bool
	canceled bool
	err      error
}

func newProgressModel(title string, cancel context.CancelFunc) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return progressModel{title: title, spinner: s, cancel: cancel}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.canceled = true
			m.cancel()
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.done || m.canceled {
		return ""
	}
	return m.spinner.View() + " " + Muted.Render(m.title) + "\n"
}

// RunWithSpinner runs fn while drawing a spinner on w. Interrupting the
// spinner cancels the context passed to fn. RunWithSpinner always waits
// for fn to return and reports fn's result, so a terminal that cannot host
// the spinner only loses the animation.
func RunWithSpinner[T any](ctx context.Context, w io.Writer, in io.Reader, title string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := []tea.ProgramOption{tea.WithOutput(w), tea.WithContext(ctx)}
	if in == nil {
		opts = append(opts, tea.WithInput(nil))
	} else {
		opts = append(opts, tea.WithInput(in))
	}
	p := tea.NewProgram(newProgressModel(title, cancel), opts...)

	var (
		result T
		err    error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		result, err = fn(ctx)
		p.Send(doneMsg{err: err})
	}()

	if _, runErr := p.Run(); runErr != nil {
		logging.Warn("progress display failed", "error", runErr)
	}
	<-finished
	return result, err
}
