package renderer

import (
	"fmt"

	"github.com/thereceipt/label-engine/internal/paginator"
)

// RenderPage draws every cell of a page at its grid offset
func RenderPage(s RenderSurface, page *paginator.Page, grid paginator.Grid) error {
	for i := range page.Cells {
		cell := &page.Cells[i]
		if cell.Empty() {
			continue
		}

		ox, oy := grid.CellOrigin(cell.Index)
		for _, node := range cell.Nodes {
			node.Object.Left += ox
			node.Object.Top += oy
			if err := s.DrawObject(node); err != nil {
				return fmt.Errorf("failed to draw cell %d: %w", cell.Index, err)
			}
		}
	}
	return nil
}

// NewSheetSurface creates a surface sized to one sheet of the grid
func NewSheetSurface(grid paginator.Grid, opts Options) *Surface {
	w, h := grid.SheetSize()
	return NewSurface(w, h, opts)
}
