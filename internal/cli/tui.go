package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/gqnviz/pkg/pipeline"
)

const barWidth = 32

var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ProgressModel - Live progress of a pipeline run
// =============================================================================

type progressMsg pipeline.Progress

type doneMsg struct{ err error }

// ProgressModel is the bubbletea model showing a running pipeline stage.
type ProgressModel struct {
	Title    string
	Progress pipeline.Progress
	Err      error
	Done     bool
	start    time.Time
	cancel   context.CancelFunc
}

// NewProgressModel creates a progress model. cancel is called when the user
// quits before the run is done.
func NewProgressModel(title string, cancel context.CancelFunc) ProgressModel {
	return ProgressModel{Title: title, start: time.Now(), cancel: cancel}
}

func (m ProgressModel) Init() tea.Cmd {
	return nil
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case progressMsg:
		m.Progress = pipeline.Progress(msg)
	case doneMsg:
		m.Done = true
		m.Err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m ProgressModel) View() string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")

	p := m.Progress
	stage := p.Stage
	if stage == "" {
		stage = "starting"
	}
	if p.Total > 0 {
		b.WriteString(renderBar(p.Done, p.Total))
		b.WriteString(" ")
		b.WriteString(StyleNumber.Render(fmt.Sprintf("%d/%d", p.Done, p.Total)))
	} else {
		b.WriteString(StyleNumber.Render(fmt.Sprintf("%d", p.Done)))
	}
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %s · %s", stage, time.Since(m.start).Round(time.Second))))
	b.WriteString("\n")

	switch {
	case m.Done && m.Err != nil:
		b.WriteString(styleIconError.Render(iconError) + " " + m.Err.Error() + "\n")
	case m.Done:
		b.WriteString(styleIconSuccess.Render(iconSuccess) + " done\n")
	default:
		b.WriteString(listDimStyle.Render("q quit") + "\n")
	}
	return b.String()
}

var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

func renderBar(done, total int) string {
	n := 0
	if total > 0 {
		n = min(barWidth*done/total, barWidth)
	}
	return barFullStyle.Render(strings.Repeat("█", n)) + barEmptyStyle.Render(strings.Repeat("░", barWidth-n))
}

// runWithTUI runs fn while a progress view follows the progress it reports.
// Quitting the view cancels fn's context; the returned error is fn's.
func runWithTUI(ctx context.Context, title string, fn func(ctx context.Context, report func(pipeline.Progress)) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(title, cancel), tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	errc := make(chan error, 1)
	go func() {
		err := fn(ctx, func(pr pipeline.Progress) { p.Send(progressMsg(pr)) })
		errc <- err
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-errc
		return fmt.Errorf("progress view: %w", err)
	}
	return <-errc
}
