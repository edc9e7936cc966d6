package screens

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thereceipt/label-engine/internal/engine"
	"github.com/thereceipt/label-engine/internal/registry"
)

// TemplatesView lists stored templates and lets the user open, rename or delete them
type TemplatesView struct {
	app     *tview.Application
	engine  *engine.Engine
	form    *tview.Form
	list    *tview.List
	details *tview.TextView
	layout  *tview.Flex
	entries []*registry.Entry
	current string
}

// NewTemplatesView creates a new templates screen
func NewTemplatesView(app *tview.Application, e *engine.Engine) *TemplatesView {
	r := &TemplatesView{
		app:    app,
		engine: e,
	}

	r.setupUI()
	return r
}

func (r *TemplatesView) setupUI() {
	r.list = tview.NewList()
	r.list.SetBorder(true)
	r.list.SetTitle("Templates")
	r.list.SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		r.selectEntry(index)
	})

	r.details = tview.NewTextView()
	r.details.SetBorder(true)
	r.details.SetTitle("Template Details")
	r.details.SetDynamicColors(true)

	r.form = tview.NewForm()
	r.form.SetBorder(true)
	r.form.SetTitle("Rename Template")
	r.form.AddInputField("Name", "", 30, nil, nil)
	r.form.AddButton("Save", func() {
		r.saveName()
	})
	r.form.AddButton("Cancel", func() {
		r.app.SetFocus(r.list)
	})

	rightPanel := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(r.details, 0, 1, false).
		AddItem(r.form, 0, 1, false)

	r.layout = tview.NewFlex().
		AddItem(r.list, 0, 1, true).
		AddItem(rightPanel, 0, 2, false)

	r.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			return event // Let parent handle
		case tcell.KeyRune:
			switch event.Rune() {
			case 'r':
				r.Refresh()
				return nil
			case 'e':
				if r.current != "" {
					r.app.SetFocus(r.form)
				}
				return nil
			case 'o':
				r.openCurrent()
				return nil
			case 'd':
				r.deleteCurrent()
				return nil
			}
		}
		return event
	})

	r.Refresh()
}

// Refresh reloads the list from the registry
func (r *TemplatesView) Refresh() {
	r.list.Clear()
	r.entries = r.engine.Registry.GetAll()

	if len(r.entries) == 0 {
		r.current = ""
		r.details.SetText("[yellow]No templates stored yet[white]\n\nUse 'template import <path>' from the dashboard.")
		return
	}

	for _, entry := range r.entries {
		r.list.AddItem("📄 "+entry.Name, fmt.Sprintf("%d objects • %s", entry.Objects, entry.ID[:8]), 0, nil)
	}
	r.selectEntry(r.list.GetCurrentItem())
}

func (r *TemplatesView) selectEntry(index int) {
	if index < 0 || index >= len(r.entries) {
		return
	}
	entry := r.entries[index]
	r.current = entry.ID

	details := fmt.Sprintf(`[yellow]ID:[white] %s
[yellow]Name:[white] %s
[yellow]Description:[white] %s
[yellow]Objects:[white] %d
[yellow]Created:[white] %s
[yellow]Updated:[white] %s

[yellow]'o' open in session, 'e' rename, 'd' delete, 'r' refresh`,
		entry.ID,
		entry.Name,
		entry.Description,
		entry.Objects,
		entry.CreatedAt.Format("2006-01-02 15:04:05"),
		entry.UpdatedAt.Format("2006-01-02 15:04:05"))

	r.details.SetText(details)
	r.form.GetFormItem(0).(*tview.InputField).SetText(entry.Name)
}

func (r *TemplatesView) openCurrent() {
	if r.current == "" {
		return
	}
	if err := r.engine.OpenTemplate(r.current); err != nil {
		r.details.SetText(fmt.Sprintf("[red]✗ Failed to open template: %v[white]", err))
		return
	}
	r.details.SetText(fmt.Sprintf("[green]✓ Template %s loaded into the session[white]", r.current[:8]))
}

func (r *TemplatesView) deleteCurrent() {
	if r.current == "" {
		return
	}
	id := r.current
	if !r.engine.RemoveTemplate(id) {
		r.details.SetText(fmt.Sprintf("[red]✗ Template not found: %s[white]", id))
		return
	}
	r.Refresh()
	r.details.SetText(fmt.Sprintf("[green]✓ Deleted template %s[white]", id[:8]))
}

func (r *TemplatesView) saveName() {
	if r.current == "" {
		r.details.SetText("[red]✗ No template selected[white]")
		return
	}

	nameField := r.form.GetFormItem(0).(*tview.InputField)
	newName := strings.TrimSpace(nameField.GetText())

	if err := r.engine.Registry.SetName(r.current, newName); err != nil {
		r.details.SetText(fmt.Sprintf("[red]✗ %v[white]", err))
		return
	}

	id := r.current
	r.Refresh()
	for i, entry := range r.entries {
		if entry.ID == id {
			r.list.SetCurrentItem(i)
			r.selectEntry(i)
			break
		}
	}
	r.app.SetFocus(r.list)
}

// GetRoot returns the root primitive for this screen
func (r *TemplatesView) GetRoot() tview.Primitive {
	return r.layout
}
