package pdfdoc

import (
	"fmt"

	"github.com/tsawler/tabula/reader"
)

// Info describes an exported document
type Info struct {
	Path       string  `json:"path"`
	Version    string  `json:"version"`
	Pages      int     `json:"pages"`
	PageWidth  float64 `json:"page_width"`
	PageHeight float64 `json:"page_height"`
	Size       int64   `json:"size"`
}

// Inspect opens a PDF and reports its version, page count and first page size
func Inspect(path string) (*Info, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer r.Close()

	pages, err := r.PageCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}

	info := &Info{
		Path:    path,
		Version: r.Version().String(),
		Pages:   pages,
		Size:    r.FileSize(),
	}

	if pages > 0 {
		page, err := r.GetPage(0)
		if err != nil {
			return nil, fmt.Errorf("failed to read first page: %w", err)
		}
		if info.PageWidth, err = page.Width(); err != nil {
			return nil, fmt.Errorf("failed to read page width: %w", err)
		}
		if info.PageHeight, err = page.Height(); err != nil {
			return nil, fmt.Errorf("failed to read page height: %w", err)
		}
	}

	return info, nil
}
