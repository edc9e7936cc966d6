// Package paginator lays stamped copies of a template onto fixed grids of cells
package paginator

import (
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/thereceipt/label-engine/internal/resolver"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// ErrorMarkerText is drawn in place of a cell that failed to render
const ErrorMarkerText = "template error"

// Grid describes the cell layout of one sheet
type Grid struct {
	Rows       int     `json:"rows" yaml:"rows"`
	Cols       int     `json:"cols" yaml:"cols"`
	CellWidth  float64 `json:"cell_width" yaml:"cell_width"`
	CellHeight float64 `json:"cell_height" yaml:"cell_height"`
	// Reference canvas; zero means the template's own design size
	DesignWidth  float64 `json:"design_width,omitempty" yaml:"design_width,omitempty"`
	DesignHeight float64 `json:"design_height,omitempty" yaml:"design_height,omitempty"`
}

// DefaultGrid is a 3x3 sheet of 180px cells
func DefaultGrid() Grid {
	return Grid{Rows: 3, Cols: 3, CellWidth: 180, CellHeight: 180}
}

// Validate checks the grid dimensions
func (g Grid) Validate() error {
	if g.Rows < 1 || g.Cols < 1 {
		return fmt.Errorf("invalid grid %dx%d: rows and cols must be at least 1", g.Rows, g.Cols)
	}
	if g.CellWidth <= 0 || g.CellHeight <= 0 {
		return fmt.Errorf("invalid cell size %gx%g", g.CellWidth, g.CellHeight)
	}
	return nil
}

// ItemsPerPage is the number of cells on a sheet
func (g Grid) ItemsPerPage() int {
	return g.Rows * g.Cols
}

// PageCount is the number of sheets needed for n records
func (g Grid) PageCount(n int) int {
	per := g.ItemsPerPage()
	if n <= 0 || per <= 0 {
		return 0
	}
	return (n + per - 1) / per
}

// SheetSize is the pixel size of a whole sheet
func (g Grid) SheetSize() (float64, float64) {
	return float64(g.Cols) * g.CellWidth, float64(g.Rows) * g.CellHeight
}

// CellOrigin is the top-left corner of cell i within its sheet
func (g Grid) CellOrigin(i int) (float64, float64) {
	return float64(i%g.Cols) * g.CellWidth, float64(i/g.Cols) * g.CellHeight
}

// Cell is one slot of a page
type Cell struct {
	Index       int
	RecordIndex int // -1 for an empty trailing cell
	Nodes       []resolver.Node
	Err         error
}

// Empty reports whether the cell has no record
func (c *Cell) Empty() bool {
	return c.RecordIndex < 0
}

// Rendered reports whether the cell holds a successfully stamped record
func (c *Cell) Rendered() bool {
	return !c.Empty() && c.Err == nil
}

// Page is one sheet of cells
type Page struct {
	Index int // position in the original page sequence
	Cells []Cell
}

// RecordIndexes lists the records placed on the page in cell order
func (p *Page) RecordIndexes() []int {
	var out []int
	for i := range p.Cells {
		if !p.Cells[i].Empty() {
			out = append(out, p.Cells[i].RecordIndex)
		}
	}
	return out
}

// Paginator partitions records into pages and stamps the template into each cell
type Paginator struct {
	grid     Grid
	resolver *resolver.Resolver
	workers  int
	log      *slog.Logger
}

// Options configures a Paginator
type Options struct {
	// Workers bounds concurrent cell resolution within a page
	Workers int
	Logger  *slog.Logger
}

// New creates a new paginator
func New(grid Grid, r *resolver.Resolver, opts Options) (*Paginator, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Paginator{grid: grid, resolver: r, workers: opts.Workers, log: logger}, nil
}

// Grid returns the paginator's layout
func (p *Paginator) Grid() Grid {
	return p.grid
}

// Paginate produces ceil(len(records)/cells) pages, minus pages where no cell rendered
func (p *Paginator) Paginate(tpl *labelformat.Template, records []labelformat.Record) []Page {
	return p.PaginateSheets(tpl, records, 0, p.grid.PageCount(len(records)))
}

// PaginateSheets lays out only sheets [first, last) of the full grid
// sequence. Cells outside that window are never resolved, and page and
// record indexes stay those of the full sequence.
func (p *Paginator) PaginateSheets(tpl *labelformat.Template, records []labelformat.Record, first, last int) []Page {
	total := p.grid.PageCount(len(records))
	if first < 0 {
		first = 0
	}
	if last > total {
		last = total
	}
	if first >= last {
		return []Page{}
	}

	var tplErr error
	var scaled *labelformat.Template
	if tpl == nil {
		tplErr = fmt.Errorf("no template")
	} else if err := labelformat.Validate(tpl); err != nil {
		tplErr = fmt.Errorf("invalid template: %w", err)
	} else {
		scaled = p.scale(tpl)
	}

	per := p.grid.ItemsPerPage()
	pages := make([]Page, 0, last-first)

	for pi := first; pi < last; pi++ {
		page := Page{Index: pi, Cells: make([]Cell, per)}
		start := pi * per

		var g errgroup.Group
		g.SetLimit(p.workers)

		for ci := 0; ci < per; ci++ {
			cell := &page.Cells[ci]
			cell.Index = ci
			cell.RecordIndex = -1

			ri := start + ci
			if ri >= len(records) {
				continue
			}
			cell.RecordIndex = ri

			if tplErr != nil {
				p.markFailed(cell, tplErr)
				continue
			}

			g.Go(func() error {
				nodes, err := p.resolver.ResolveAll(scaled.Objects, records[ri])
				if err != nil {
					p.markFailed(cell, err)
					return nil
				}
				cell.Nodes = nodes
				return nil
			})
		}
		g.Wait()

		if !anyRendered(&page) {
			p.log.Warn("dropping page with no rendered cells", "page", pi+1)
			continue
		}
		pages = append(pages, page)
	}

	return pages
}

// ScaleTemplate returns a copy of tpl fitted to one cell
func (p *Paginator) ScaleTemplate(tpl *labelformat.Template) *labelformat.Template {
	return p.scale(tpl)
}

func (p *Paginator) scale(tpl *labelformat.Template) *labelformat.Template {
	dw, dh := p.grid.DesignWidth, p.grid.DesignHeight
	if dw == 0 {
		dw = tpl.DesignWidth
	}
	if dh == 0 {
		dh = tpl.DesignHeight
	}
	return Scale(tpl, p.grid.CellWidth/dw, p.grid.CellHeight/dh)
}

// Scale returns a deep copy of tpl with every object's geometry multiplied
// by sx horizontally and sy vertically
func Scale(tpl *labelformat.Template, sx, sy float64) *labelformat.Template {
	c := tpl.Clone()
	for i := range c.Objects {
		obj := &c.Objects[i]
		if obj.ScaleX == 0 {
			obj.ScaleX = 1
		}
		if obj.ScaleY == 0 {
			obj.ScaleY = 1
		}
		obj.Left *= sx
		obj.Top *= sy
		obj.Width *= sx
		obj.Height *= sy
		obj.ScaleX *= sx
		obj.ScaleY *= sy
	}
	c.DesignWidth *= sx
	c.DesignHeight *= sy
	return c
}

func (p *Paginator) markFailed(cell *Cell, err error) {
	p.log.Error("cell failed to render", "record", cell.RecordIndex, "err", err)
	cell.Err = err
	cell.Nodes = []resolver.Node{errorMarker(p.grid.CellWidth)}
}

func errorMarker(cellWidth float64) resolver.Node {
	return resolver.Node{Object: labelformat.Object{
		Type:     labelformat.TypeText,
		Left:     4,
		Top:      4,
		Width:    cellWidth - 8,
		Height:   16,
		ScaleX:   1,
		ScaleY:   1,
		Text:     ErrorMarkerText,
		Fill:     "#ff0000",
		FontSize: 12,
	}}
}

func anyRendered(page *Page) bool {
	for i := range page.Cells {
		if page.Cells[i].Rendered() {
			return true
		}
	}
	return false
}
