package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/thereceipt/label-engine/internal/export"
)

// Messages
type progressMsg export.Progress

type doneMsg struct {
	result *export.Result
	err    error
}

// ExportModel shows a progress bar while an export runs
type ExportModel struct {
	title   string
	bar     progress.Model
	spinner spinner.Model
	last    export.Progress
	cancel  context.CancelFunc

	cancelling bool
	done       bool
	result     *export.Result
	err        error
}

// NewExportModel creates the model. cancel is called when the user quits early.
func NewExportModel(title string, cancel context.CancelFunc) ExportModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return ExportModel{
		title:   title,
		bar:     progress.New(progress.WithGradient(string(accent), string(accentEnd)), progress.WithWidth(48)),
		spinner: s,
		cancel:  cancel,
	}
}

// Init starts the spinner
func (m ExportModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles progress, completion and key presses
func (m ExportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// Wait for the export to unwind; it reports back with doneMsg
			if !m.cancelling && m.cancel != nil {
				m.cancelling = true
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		w := msg.Width - 8
		if w > 72 {
			w = 72
		}
		if w > 10 {
			m.bar.Width = w
		}
		return m, nil

	case progressMsg:
		m.last = export.Progress(msg)
		return m, nil

	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the bar
func (m ExportModel) View() string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render(m.title))
	b.WriteString("\n")

	switch {
	case m.done && m.err != nil:
		if errors.Is(m.err, context.Canceled) {
			b.WriteString(WarningStyle.Render("🛑 Export cancelled, nothing was written"))
		} else {
			b.WriteString(ErrorStyle.Render("❌ " + m.err.Error()))
		}
	case m.done:
		b.WriteString(SuccessStyle.Render(fmt.Sprintf("✅ %s: %d pages in %d blocks", m.result.FileName, m.result.Pages, m.result.Blocks)))
	default:
		b.WriteString(m.bar.ViewAs(m.last.Fraction))
		b.WriteString("\n")
		status := fmt.Sprintf("%s page %d/%d, block %d/%d",
			m.spinner.View(), m.last.PagesDone, m.last.TotalPages,
			min(m.last.BlocksCompleted+1, m.last.TotalBlocks), m.last.TotalBlocks)
		if m.cancelling {
			status += WarningStyle.Render("  cancelling...")
		}
		b.WriteString(CardStyle.Render(status))
		b.WriteString("\n")
		b.WriteString(RenderHelp("q", "cancel"))
	}

	b.WriteString("\n")
	return b.String()
}

// RunExport runs fn while showing its progress. It returns fn's result.
func RunExport(ctx context.Context, title string, fn func(ctx context.Context, report func(export.Progress)) (*export.Result, error)) (*export.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewExportModel(title, cancel))

	go func() {
		res, err := fn(ctx, func(pr export.Progress) {
			p.Send(progressMsg(pr))
		})
		p.Send(doneMsg{result: res, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run progress display: %w", err)
	}

	m := final.(ExportModel)
	return m.result, m.err
}
