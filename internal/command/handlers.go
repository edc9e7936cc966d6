package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/thereceipt/label-engine/internal/editor"
	"github.com/thereceipt/label-engine/internal/engine"
	"github.com/thereceipt/label-engine/internal/printer"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// handleTemplate handles template commands
// Usage: template list | load <id|path|url> | import <path|url> | save [name] | rename <id> <name> | remove <id>
func (e *Executor) handleTemplate(args []string) *Result {
	if len(args) == 0 {
		return failure("usage: template <list|load|import|save|rename|remove>")
	}

	switch args[0] {
	case "list":
		entries := e.engine.Registry.GetAll()
		list := make([]map[string]interface{}, len(entries))
		for i, entry := range entries {
			list[i] = map[string]interface{}{
				"id":      entry.ID,
				"name":    entry.Name,
				"objects": entry.Objects,
			}
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d template(s)", len(entries)),
			Data:    map[string]interface{}{"templates": list},
		}

	case "load":
		if len(args) < 2 {
			return failure("usage: template load <id|path|url>")
		}
		if e.engine.Registry.GetEntry(args[1]) != nil {
			if err := e.engine.OpenTemplate(args[1]); err != nil {
				return failure("failed to open template: %v", err)
			}
		} else {
			tpl, err := engine.ReadTemplate(args[1])
			if err != nil {
				return failure("failed to load template: %v", err)
			}
			if err := e.engine.LoadTemplate(tpl); err != nil {
				return failure("%v", err)
			}
		}
		status := e.engine.Session.Status()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Loaded template with %d object(s)", status.Objects),
			Data:    map[string]interface{}{"session": status},
		}

	case "import":
		if len(args) < 2 {
			return failure("usage: template import <path|url>")
		}
		tpl, err := engine.ReadTemplate(args[1])
		if err != nil {
			return failure("failed to load template: %v", err)
		}
		entry, err := e.engine.AddTemplate(tpl)
		if err != nil {
			return failure("failed to import template: %v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Imported template %s", entry.Name),
			Data:    map[string]interface{}{"template": entry},
		}

	case "save":
		name := ""
		if len(args) >= 2 {
			name = args[1]
		}
		entry, err := e.engine.SaveSession(name)
		if err != nil {
			return failure("failed to save template: %v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Saved template %s", entry.Name),
			Data:    map[string]interface{}{"template": entry},
		}

	case "rename":
		if len(args) < 3 {
			return failure("usage: template rename <id> <name>")
		}
		if err := e.engine.Registry.SetName(args[1], args[2]); err != nil {
			return failure("%v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Renamed template %s to %s", args[1], args[2]),
		}

	case "remove":
		if len(args) < 2 {
			return failure("usage: template remove <id>")
		}
		if !e.engine.RemoveTemplate(args[1]) {
			return failure("template not found: %s", args[1])
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Removed template %s", args[1]),
		}

	default:
		return failure("unknown template subcommand: %s. Use: list, load, import, save, rename, remove", args[0])
	}
}

// handleObject handles object commands
// Usage: object add <type> [text] | remove <id> | set <id> key=value... | front|back|duplicate|upper|lower <id>
func (e *Executor) handleObject(args []string) *Result {
	if len(args) < 2 {
		return failure("usage: object <add|remove|set|front|back|duplicate|upper|lower> <arg>")
	}

	session := e.engine.Session
	sub, target := args[0], args[1]
	var err error

	switch sub {
	case "add":
		obj := labelformat.Object{Type: target, Left: 10, Top: 10, Width: 200, Height: 40, ScaleX: 1, ScaleY: 1}
		if len(args) >= 3 {
			obj.Text = args[2]
		}
		id, err := session.Add(obj)
		if err != nil {
			return failure("failed to add object: %v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Added %s %s", target, id),
			Data:    map[string]interface{}{"object_id": id},
		}
	case "duplicate":
		id, err := session.Duplicate(target)
		if err != nil {
			return failure("failed to duplicate: %v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Duplicated %s as %s", target, id),
			Data:    map[string]interface{}{"object_id": id},
		}
	case "remove":
		err = session.Remove(target)
	case "set":
		patch, perr := parsePatch(args[2:])
		if perr != nil {
			return failure("%v", perr)
		}
		err = session.Modify(target, patch)
	case "front":
		err = session.BringToFront(target)
	case "back":
		err = session.SendToBack(target)
	case "upper", "lower":
		err = session.ChangeCase(target, sub)
	default:
		return failure("unknown object subcommand: %s", sub)
	}

	if err != nil {
		return failure("failed to %s object: %v", sub, err)
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Object %s: %s", target, sub),
	}
}

// parsePatch turns key=value pairs into a patch. Numbers and booleans keep their type.
func parsePatch(pairs []string) (editor.Patch, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("usage: object set <id> key=value...")
	}

	patch := editor.Patch{}
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property: %s", kv)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			patch[key] = f
		} else if b, err := strconv.ParseBool(value); err == nil {
			patch[key] = b
		} else {
			patch[key] = value
		}
	}
	return patch, nil
}

func (e *Executor) handleHistory(undo bool) *Result {
	var moved bool
	var err error
	action, done := "redo", "Redid last change"
	if undo {
		action, done = "undo", "Undid last change"
		moved, err = e.engine.Session.Undo()
	} else {
		moved, err = e.engine.Session.Redo()
	}
	if err != nil {
		return failure("%s failed: %v", action, err)
	}
	if !moved {
		return &Result{Success: true, Message: fmt.Sprintf("Nothing to %s", action)}
	}
	return &Result{
		Success: true,
		Message: done,
		Data:    map[string]interface{}{"session": e.engine.Session.Status()},
	}
}

func (e *Executor) handleStatus() *Result {
	status := e.engine.Session.Status()
	msg := fmt.Sprintf("%d object(s), %d record(s), history %d/%d", status.Objects, status.Records, status.Cursor+1, status.Entries)
	if status.Unsaved {
		msg += ", unsaved changes"
	}
	return &Result{
		Success: true,
		Message: msg,
		Data:    map[string]interface{}{"session": status},
	}
}

// handleRecords handles records <path>
func (e *Executor) handleRecords(args []string) *Result {
	if len(args) < 1 {
		return failure("usage: records <path>")
	}
	set, err := e.engine.LoadRecords(args[0])
	if err != nil {
		return failure("failed to load records: %v", err)
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Loaded %d record(s)", set.Len()),
		Data: map[string]interface{}{
			"records": set.Len(),
			"columns": set.Columns,
		},
	}
}

// handleColumns handles columns <qr-column> [filename-column]
func (e *Executor) handleColumns(args []string) *Result {
	if len(args) < 1 {
		return failure("usage: columns <qr-column> [filename-column]")
	}
	filename := ""
	if len(args) >= 2 {
		filename = args[1]
	}
	e.engine.Session.SetColumns(args[0], filename)
	return &Result{
		Success: true,
		Message: fmt.Sprintf("QR column %s", args[0]),
	}
}

// handleExport handles export [selection] [--records] [--printer <uri>]
func (e *Executor) handleExport(args []string) *Result {
	req := engine.ExportRequest{Mode: engine.ModePages}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--records":
			req.Mode = engine.ModeRecords
		case "--printer":
			if i+1 >= len(args) {
				return failure("usage: export [selection] [--records] [--printer <uri>]")
			}
			i++
			req.Printer = args[i]
		default:
			req.Selection = args[i]
		}
	}

	id, err := e.engine.SubmitExport(req)
	if err != nil {
		return failure("export rejected: %v", err)
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Export job queued: %s", id),
		Data:    map[string]interface{}{"job_id": id},
	}
}

// handleJob handles job commands
// Usage: job list | status <id> | cancel <id> | clear
func (e *Executor) handleJob(args []string) *Result {
	if len(args) == 0 {
		return failure("usage: job <list|status|cancel|clear>")
	}

	queue := e.engine.Queue

	switch args[0] {
	case "list":
		jobs := queue.GetAllJobs()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d job(s)", len(jobs)),
			Data:    map[string]interface{}{"jobs": jobs},
		}

	case "status":
		if len(args) < 2 {
			return failure("usage: job status <id>")
		}
		job := queue.GetJob(args[1])
		if job == nil {
			return failure("job not found: %s", args[1])
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("%s: %s %.0f%%", job.ID, job.Status, job.Progress*100),
			Data:    map[string]interface{}{"job": job},
		}

	case "cancel":
		if len(args) < 2 {
			return failure("usage: job cancel <id>")
		}
		if err := queue.Cancel(args[1]); err != nil {
			return failure("%v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Cancelled job %s", args[1]),
		}

	case "clear":
		n := queue.ClearCompleted()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Cleared %d finished job(s)", n),
		}

	default:
		return failure("unknown job subcommand: %s. Use: list, status, cancel, clear", args[0])
	}
}

// handlePrinters lists printers found on USB and serial ports
func (e *Executor) handlePrinters() *Result {
	found, err := printer.Discover()
	if err != nil {
		return failure("detection failed: %v", err)
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Detected %d printer(s)", len(found)),
		Data:    map[string]interface{}{"printers": found},
	}
}

func (e *Executor) handleHelp() *Result {
	helpText := `Available Commands:

  template list | load <id|path|url> | import <path|url>
  template save [name] | rename <id> <name> | remove <id>
    Manage stored templates and the template being edited

  object add <type> [text]
    Add a textbox, text, image, barcode or rect
  object set <id> key=value...
    Change object properties
  object remove|front|back|duplicate|upper|lower <id>

  undo | redo | status

  records <path>
    Load records from .csv, .json, .jsonl or .parquet
  columns <qr-column> [filename-column]

  export [all|a-b|n] [--records] [--printer <uri>|default]
    Queue an export of the selected pages
  job list | status <id> | cancel <id> | clear

  printers
    Detect USB and serial printers

Examples:
  template load ./shelf.json
  records ./assets.csv
  object set 3f2a text="Asset: {{id}}" fontSize=18
  export 2-5
  export all --printer tcp://192.168.1.50:9100
`

	return &Result{
		Success: true,
		Message: helpText,
	}
}
