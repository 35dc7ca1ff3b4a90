package ui

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Work is an operation shown behind a spinner
type Work func(ctx context.Context) error

type (
	tickMsg time.Time
	doneMsg struct{ err error }
)

const tickInterval = 100 * time.Millisecond

// scanModel shows a spinner and a bar that fills over the expected
// duration of the work. The bar stays full if the work runs longer.
type scanModel struct {
	label       string
	spinner     spinner.Model
	bar         progress.Model
	start       time.Time
	window      time.Duration
	now         func() time.Time
	done        bool
	interrupted bool
}

func newScanModel(label string, window time.Duration) scanModel {
	return scanModel{
		label: label,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(SpinnerStyle),
		),
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		start:  time.Now(),
		window: window,
		now:    time.Now,
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model
func (m scanModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// Update implements tea.Model
func (m scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.interrupted = true
			return m, tea.Quit
		}
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tickMsg:
		if m.done {
			return m, nil
		}
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m scanModel) View() string {
	if m.done || m.interrupted {
		return ""
	}
	elapsed := m.now().Sub(m.start)
	return fmt.Sprintf("%s %s\n  %s %s\n",
		m.spinner.View(),
		ProgressLabelStyle.Render(m.label),
		m.bar.ViewAs(fraction(elapsed, m.window)),
		FooterStyle.Render(elapsed.Truncate(100*time.Millisecond).String()),
	)
}

// fraction returns elapsed/window clamped to [0, 1]
func fraction(elapsed, window time.Duration) float64 {
	if window <= 0 || elapsed >= window {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(elapsed) / float64(window)
}

// RunWithSpinner runs work while animating a spinner on out. window is the
// expected duration of the work, used to fill the progress bar. When out is
// not a terminal work simply runs. Ctrl+C cancels the work's context.
func RunWithSpinner(ctx context.Context, out io.Writer, label string, window time.Duration, work Work) error {
	if !IsTerminal(out) {
		return work(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newScanModel(label, window), tea.WithOutput(out))

	errc := make(chan error, 1)
	go func() {
		err := work(ctx)
		errc <- err
		p.Send(doneMsg{err: err})
	}()

	final, err := p.Run()
	if err != nil {
		// The terminal could not be driven; the work is still running
		return <-errc
	}
	if m, ok := final.(scanModel); ok && m.interrupted {
		cancel()
		<-errc
		return context.Canceled
	}
	return <-errc
}
