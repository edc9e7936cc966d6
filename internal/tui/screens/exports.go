package screens

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thereceipt/label-engine/internal/jobs"
)

// ExportsView shows the export queue with progress and lets the user cancel jobs
type ExportsView struct {
	app     *tview.Application
	queue   *jobs.Queue
	table   *tview.Table
	details *tview.TextView
	layout  *tview.Flex
}

// NewExportsView creates a new exports view screen
func NewExportsView(app *tview.Application, queue *jobs.Queue) *ExportsView {
	j := &ExportsView{
		app:   app,
		queue: queue,
	}

	j.setupUI()
	return j
}

func (j *ExportsView) setupUI() {
	j.table = tview.NewTable()
	j.table.SetBorder(true)
	j.table.SetTitle("Exports")
	j.table.SetSelectable(true, false)
	j.table.SetSelectedFunc(func(row, column int) {
		j.selectJob(row)
	})

	j.details = tview.NewTextView()
	j.details.SetBorder(true)
	j.details.SetTitle("Export Details")
	j.details.SetDynamicColors(true)

	j.layout = tview.NewFlex().
		AddItem(j.table, 0, 2, true).
		AddItem(j.details, 0, 1, false)

	j.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			return event // Let parent handle
		case tcell.KeyRune:
			switch event.Rune() {
			case 'r':
				j.Refresh()
				return nil
			case 'c':
				j.clearCompleted()
				return nil
			case 'x':
				row, _ := j.table.GetSelection()
				j.cancelJob(row)
				return nil
			}
		}
		return event
	})

	j.Refresh()
}

// Refresh reloads the table from the queue
func (j *ExportsView) Refresh() {
	j.table.Clear()

	headers := []string{"ID", "Export", "Status", "Progress", "Time"}
	for col, h := range headers {
		j.table.SetCell(0, col, tview.NewTableCell(h).SetAlign(tview.AlignCenter).SetSelectable(false))
	}

	all := j.queue.GetAllJobs()
	for i, job := range all {
		row := i + 1
		j.table.SetCell(row, 0, tview.NewTableCell(shortID(job.ID)))
		j.table.SetCell(row, 1, tview.NewTableCell(job.Label))
		j.table.SetCell(row, 2, tview.NewTableCell(StatusIcon(job.Status)+" "+string(job.Status)))
		j.table.SetCell(row, 3, tview.NewTableCell(ProgressBar(job.Progress, 12)))

		timeStr := time.Since(job.CreatedAt).Truncate(time.Second).String()
		j.table.SetCell(row, 4, tview.NewTableCell(timeStr))
	}

	if len(all) == 0 {
		j.details.SetText("[yellow]No exports yet[white]")
	}
}

func (j *ExportsView) jobAt(row int) *jobs.Job {
	if row <= 0 {
		return nil
	}
	all := j.queue.GetAllJobs()
	if row-1 >= len(all) {
		return nil
	}
	return all[row-1]
}

func (j *ExportsView) selectJob(row int) {
	job := j.jobAt(row)
	if job == nil {
		return
	}

	var details strings.Builder
	details.WriteString(fmt.Sprintf("[yellow]Job ID:[white] %s\n", job.ID))
	details.WriteString(fmt.Sprintf("[yellow]Export:[white] %s\n", job.Label))
	details.WriteString(fmt.Sprintf("[yellow]Status:[white] %s %s\n", StatusIcon(job.Status), job.Status))
	details.WriteString(fmt.Sprintf("[yellow]Progress:[white] %.0f%%\n", job.Progress*100))
	details.WriteString(fmt.Sprintf("[yellow]Created:[white] %s\n", job.CreatedAt.Format("2006-01-02 15:04:05")))
	if job.FileName != "" {
		details.WriteString(fmt.Sprintf("[yellow]File:[white] %s (%d pages, %d bytes)\n", job.FileName, job.Pages, job.Size))
	}
	if job.Error != "" {
		details.WriteString(fmt.Sprintf("\n[red]Error:[white] %s\n", job.Error))
	}

	details.WriteString("\n[yellow]'r' refresh, 'x' cancel, 'c' clear finished[white]")
	j.details.SetText(details.String())
}

func (j *ExportsView) cancelJob(row int) {
	job := j.jobAt(row)
	if job == nil {
		return
	}
	if err := j.queue.Cancel(job.ID); err != nil {
		j.details.SetText(fmt.Sprintf("[red]✗ %v[white]", err))
		return
	}
	j.Refresh()
	j.details.SetText(fmt.Sprintf("[green]✓ Cancel requested for %s[white]", shortID(job.ID)))
}

func (j *ExportsView) clearCompleted() {
	n := j.queue.ClearCompleted()
	j.Refresh()
	j.details.SetText(fmt.Sprintf("[green]✓ Cleared %d finished export(s)[white]", n))
}

// GetRoot returns the root primitive for this screen
func (j *ExportsView) GetRoot() tview.Primitive {
	return j.layout
}

// StatusIcon maps a job status to an emoji
func StatusIcon(status jobs.Status) string {
	switch status {
	case jobs.StatusQueued:
		return "⏳"
	case jobs.StatusRunning:
		return "🟡"
	case jobs.StatusCompleted:
		return "✅"
	case jobs.StatusFailed:
		return "❌"
	case jobs.StatusCancelled:
		return "🛑"
	default:
		return "⚪"
	}
}

// ProgressBar draws a text bar of width cells
func ProgressBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	return "[green]" + strings.Repeat("█", filled) + "[gray]" + strings.Repeat("░", width-filled) +
		fmt.Sprintf("[white] %3.0f%%", fraction*100)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
