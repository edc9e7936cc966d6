package screens

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thereceipt/label-engine/internal/printer"
)

// PrintersView lists USB and serial printers that exports can be sent to
type PrintersView struct {
	app     *tview.Application
	list    *tview.List
	details *tview.TextView
	layout  *tview.Flex
	found   []printer.Discovered
}

// NewPrintersView creates a new printers screen
func NewPrintersView(app *tview.Application) *PrintersView {
	d := &PrintersView{app: app}
	d.setupUI()
	return d
}

func (d *PrintersView) setupUI() {
	d.list = tview.NewList()
	d.list.SetBorder(true)
	d.list.SetTitle("Printers")
	d.list.SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		d.selectPrinter(index)
	})

	d.details = tview.NewTextView()
	d.details.SetBorder(true)
	d.details.SetTitle("Printer Details")
	d.details.SetDynamicColors(true)

	d.layout = tview.NewFlex().
		AddItem(d.list, 0, 1, true).
		AddItem(d.details, 0, 2, false)

	d.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune && event.Rune() == 'r' {
			d.Refresh()
			return nil
		}
		return event
	})
}

// Refresh scans for printers
func (d *PrintersView) Refresh() {
	d.list.Clear()

	found, err := printer.Discover()
	if err != nil {
		d.list.AddItem("Error scanning printers", err.Error(), 0, nil)
	}
	d.found = found

	if len(found) == 0 {
		d.list.AddItem("No printers detected", "network printers: tcp://host:9100", 0, nil)
		d.details.SetText("[yellow]No USB or serial printers found[white]\n\nPress 'r' to scan again.")
		return
	}

	for _, p := range found {
		d.list.AddItem("🖨️ "+p.Description, p.URI, 0, nil)
	}
	d.selectPrinter(d.list.GetCurrentItem())
}

func (d *PrintersView) selectPrinter(index int) {
	if index < 0 || index >= len(d.found) {
		return
	}
	p := d.found[index]
	d.details.SetText(fmt.Sprintf(`[yellow]Description:[white] %s
[yellow]URI:[white] %s

Export to it with:
  export all --printer %s`, p.Description, p.URI, p.URI))
}

// GetRoot returns the root primitive for this screen
func (d *PrintersView) GetRoot() tview.Primitive {
	return d.layout
}
