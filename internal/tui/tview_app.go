package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thereceipt/label-engine/internal/command"
	"github.com/thereceipt/label-engine/internal/engine"
	"github.com/thereceipt/label-engine/internal/tui/screens"
)

// TViewApp is the server dashboard
type TViewApp struct {
	App      *tview.Application
	engine   *engine.Engine
	executor *command.Executor
	port     string

	// Main layout
	flex *tview.Flex

	// Panels
	templatesList *tview.List
	queueTable    *tview.Table
	statusBox     *tview.TextView
	logsArea      *tview.TextView
	commandInput  *tview.InputField

	// State
	logs      []string
	maxLogs   int
	startTime time.Time

	// Screens
	currentScreen   string // "main", "templates", "exports", "printers"
	templatesScreen *screens.TemplatesView
	exportsScreen   *screens.ExportsView
	printersScreen  *screens.PrintersView
}

// NewTViewApp creates the dashboard for e
func NewTViewApp(e *engine.Engine, port string) *TViewApp {
	app := tview.NewApplication()

	t := &TViewApp{
		App:           app,
		engine:        e,
		executor:      command.NewExecutor(e),
		port:          port,
		logs:          make([]string, 0),
		maxLogs:       200,
		startTime:     time.Now(),
		currentScreen: "main",
	}

	t.setupUI()
	t.setupScreens()
	e.Subscribe(t.onEvent)
	return t
}

func (t *TViewApp) setupScreens() {
	t.templatesScreen = screens.NewTemplatesView(t.App, t.engine)
	t.exportsScreen = screens.NewExportsView(t.App, t.engine.Queue)
	t.printersScreen = screens.NewPrintersView(t.App)
}

func (t *TViewApp) setupUI() {
	t.templatesList = tview.NewList()
	t.templatesList.SetBorder(true)
	t.templatesList.SetTitle("Templates")

	t.queueTable = tview.NewTable()
	t.queueTable.SetBorder(true)
	t.queueTable.SetTitle("Exports")

	t.statusBox = tview.NewTextView()
	t.statusBox.SetBorder(true)
	t.statusBox.SetTitle("Session")
	t.statusBox.SetDynamicColors(true)

	t.logsArea = tview.NewTextView()
	t.logsArea.SetBorder(true)
	t.logsArea.SetTitle("Server Logs")
	t.logsArea.SetDynamicColors(true)
	t.logsArea.SetScrollable(true)
	t.logsArea.SetChangedFunc(func() {
		t.App.Draw()
	})

	t.commandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0).
		SetPlaceholder("Type a command (e.g., 'help')").
		SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEnter {
				t.executeCommand(t.commandInput.GetText())
				t.commandInput.SetText("")
			}
		})

	topRow := tview.NewFlex().
		AddItem(t.templatesList, 0, 1, false).
		AddItem(t.queueTable, 0, 2, false).
		AddItem(t.statusBox, 0, 1, false)

	bottom := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.logsArea, 0, 3, false).
		AddItem(t.commandInput, 1, 0, true)

	t.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 1, false).
		AddItem(bottom, 0, 1, false)

	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if t.currentScreen != "main" {
			if event.Key() == tcell.KeyEsc {
				t.showMainScreen()
				return nil
			}
			return event
		}

		// Shortcuts are off while typing a command
		if t.commandInput.HasFocus() {
			if event.Key() == tcell.KeyEsc {
				t.App.SetFocus(t.templatesList)
				return nil
			}
			return event
		}

		switch event.Key() {
		case tcell.KeyCtrlC, tcell.KeyEsc:
			t.App.Stop()
			return nil
		case tcell.KeyCtrlZ:
			t.executeCommand("undo")
			return nil
		case tcell.KeyCtrlY:
			t.executeCommand("redo")
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case ':':
				t.App.SetFocus(t.commandInput)
				return nil
			case 'q':
				t.App.Stop()
				return nil
			case 't':
				t.showScreen("templates")
				return nil
			case 'e':
				t.showScreen("exports")
				return nil
			case 'p':
				t.showScreen("printers")
				return nil
			}
		}
		return event
	})

	t.App.SetRoot(t.flex, true)
}

// Run starts the TUI
func (t *TViewApp) Run() error {
	t.refreshAll()
	go t.refreshTicker()

	t.AddLog("🏷️  Label Engine starting...", "info")

	return t.App.Run()
}

func (t *TViewApp) refreshTicker() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		t.App.QueueUpdateDraw(func() {
			t.refreshAll()
		})
	}
}

func (t *TViewApp) onEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventSessionChanged, "export_progress":
		return
	case engine.EventTemplateAdded, engine.EventTemplateRemoved:
		// Never block the emitter on the UI loop
		go t.App.QueueUpdateDraw(func() {
			t.refreshTemplates()
			t.templatesScreen.Refresh()
		})
	}
}

func (t *TViewApp) refreshAll() {
	t.refreshTemplates()
	t.refreshQueue()
	t.refreshStatus()
	if t.currentScreen == "exports" {
		t.exportsScreen.Refresh()
	}
}

func (t *TViewApp) refreshTemplates() {
	t.templatesList.Clear()

	entries := t.engine.Registry.GetAll()
	if len(entries) == 0 {
		t.templatesList.AddItem("No templates stored", "", 0, nil)
		return
	}

	for _, entry := range entries {
		details := fmt.Sprintf("%d objects • %s", entry.Objects, entry.ID[:8])
		t.templatesList.AddItem("📄 "+entry.Name, details, 0, nil)
	}
}

func (t *TViewApp) refreshQueue() {
	t.queueTable.Clear()

	headers := []string{"Status", "Export", "Progress", "Time"}
	for col, h := range headers {
		t.queueTable.SetCell(0, col, tview.NewTableCell(h).SetAlign(tview.AlignCenter).SetSelectable(false))
	}

	all := t.engine.Queue.GetAllJobs()
	counts := map[string]int{}

	for i, job := range all {
		row := i + 1
		t.queueTable.SetCell(row, 0, tview.NewTableCell(screens.StatusIcon(job.Status)+" "+string(job.Status)))
		t.queueTable.SetCell(row, 1, tview.NewTableCell(job.Label))
		t.queueTable.SetCell(row, 2, tview.NewTableCell(screens.ProgressBar(job.Progress, 10)))

		timeStr := time.Since(job.CreatedAt).Truncate(time.Second).String()
		t.queueTable.SetCell(row, 3, tview.NewTableCell(timeStr))

		counts[string(job.Status)]++
	}

	if len(all) > 0 {
		summaryRow := len(all) + 1
		summary := fmt.Sprintf("[%d] Queued [%d] Running [%d] Completed [%d] Failed",
			counts["queued"], counts["running"], counts["completed"], counts["failed"])
		cell := tview.NewTableCell(summary)
		cell.SetSelectable(false)
		t.queueTable.SetCell(summaryRow, 0, cell)
	}
}

func (t *TViewApp) refreshStatus() {
	uptime := time.Since(t.startTime)
	hours := int(uptime.Hours())
	minutes := int(uptime.Minutes()) % 60

	st := t.engine.Session.Status()
	saved := "[green]saved[white]"
	if st.Unsaved {
		saved = "[yellow]unsaved changes[white]"
	}
	name := st.Name
	if name == "" {
		name = "untitled"
	}

	grid := t.engine.Config().Grid
	status := fmt.Sprintf(`[green]🟢 Running[white]  API :%s  Uptime %dh %dm

Template: %s
Objects: %d  Records: %d
History: %d/%d  %s
Grid: %dx%d (%d pages)`,
		t.port, hours, minutes,
		name,
		st.Objects, st.Records,
		st.Cursor+1, st.Entries, saved,
		grid.Rows, grid.Cols, grid.PageCount(st.Records))

	t.statusBox.SetText(status)
}

func (t *TViewApp) executeCommand(cmd string) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return
	}

	t.AddLog(fmt.Sprintf("> %s", cmd), "command")

	switch strings.ToLower(cmd) {
	case "templates", "t":
		t.showScreen("templates")
		return
	case "exports", "e":
		t.showScreen("exports")
		return
	case "printers", "p":
		t.showScreen("printers")
		return
	case "clear":
		t.logs = make([]string, 0)
		t.logsArea.Clear()
		return
	case "refresh":
		t.refreshAll()
		return
	case "quit", "q":
		t.App.Stop()
		return
	case "help", "h", "?":
		t.showHelp()
	}

	result := t.executor.Execute(cmd)
	if !result.Success {
		t.AddLog(result.Error, "error")
		return
	}
	if result.Message != "" {
		t.AddLog(result.Message, "info")
	}
	t.refreshAll()
}

func (t *TViewApp) showHelp() {
	help := []string{
		"Dashboard:",
		"  t, templates   - Browse stored templates",
		"  e, exports     - Export queue",
		"  p, printers    - Detected printers",
		"  clear          - Clear logs",
		"  refresh        - Refresh all panels",
		"  q, quit        - Exit application",
		"",
		"Keyboard shortcuts:",
		"  :  Focus command input",
		"  Ctrl+Z / Ctrl+Y  Undo / redo",
		"  Esc  Back to main",
		"",
	}
	t.AddLog(strings.Join(help, "\n"), "info")
}

func (t *TViewApp) showScreen(screenName string) {
	t.currentScreen = screenName

	switch screenName {
	case "templates":
		t.templatesScreen.Refresh()
		t.App.SetRoot(t.templatesScreen.GetRoot(), true)
		t.App.SetFocus(t.templatesScreen.GetRoot())
	case "exports":
		t.exportsScreen.Refresh()
		t.App.SetRoot(t.exportsScreen.GetRoot(), true)
		t.App.SetFocus(t.exportsScreen.GetRoot())
	case "printers":
		t.printersScreen.Refresh()
		t.App.SetRoot(t.printersScreen.GetRoot(), true)
		t.App.SetFocus(t.printersScreen.GetRoot())
	case "main":
		t.showMainScreen()
	}
}

func (t *TViewApp) showMainScreen() {
	t.currentScreen = "main"
	t.App.SetRoot(t.flex, true)
	t.App.SetFocus(t.commandInput)
}

// AddLog adds a log entry
func (t *TViewApp) AddLog(message string, level string) {
	var color string
	var icon string

	switch level {
	case "error":
		color = "[red]"
		icon = "❌"
	case "warning":
		color = "[yellow]"
		icon = "⚠️"
	case "command":
		color = "[cyan]"
		icon = ">"
	default:
		color = "[white]"
		icon = "ℹ️"
	}

	timeStr := time.Now().Format("15:04:05")
	logEntry := fmt.Sprintf("%s[%s] %s %s[white]\n", color, timeStr, icon, tview.Escape(message))

	t.logs = append(t.logs, logEntry)
	if len(t.logs) > t.maxLogs {
		t.logs = t.logs[len(t.logs)-t.maxLogs:]
	}

	t.logsArea.Clear()
	for _, log := range t.logs {
		fmt.Fprint(t.logsArea, log)
	}

	t.logsArea.ScrollToEnd()
}

// LogWriter creates an io.Writer that writes to the logs panel
func (t *TViewApp) LogWriter() io.Writer {
	return &tviewLogWriter{app: t}
}

type tviewLogWriter struct {
	app *TViewApp
}

func (w *tviewLogWriter) Write(p []byte) (n int, err error) {
	message := strings.TrimSpace(string(p))
	if message == "" {
		return len(p), nil
	}

	level := "info"
	switch {
	case strings.Contains(message, "level=ERROR"):
		level = "error"
	case strings.Contains(message, "level=WARN"):
		level = "warning"
	}
	w.app.AddLog(message, level)
	return len(p), nil
}
