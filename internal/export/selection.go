package export

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode is the kind of page selection
type Mode string

const (
	ModeAll    Mode = "all"
	ModeRange  Mode = "range"
	ModeSingle Mode = "single"
)

// Selection picks the pages to export. Page numbers are 1-based.
type Selection struct {
	Mode  Mode `json:"mode"`
	Start int  `json:"start,omitempty"`
	End   int  `json:"end,omitempty"`
	Page  int  `json:"page,omitempty"`
}

// All selects every page
func All() Selection {
	return Selection{Mode: ModeAll}
}

// Range selects pages start..end inclusive
func Range(start, end int) Selection {
	return Selection{Mode: ModeRange, Start: start, End: end}
}

// Single selects one page
func Single(page int) Selection {
	return Selection{Mode: ModeSingle, Page: page}
}

// ParseSelection parses "all", "a-b" or "n"
func ParseSelection(s string) (Selection, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" {
		return All(), nil
	}

	if a, b, ok := strings.Cut(s, "-"); ok {
		start, errA := strconv.Atoi(strings.TrimSpace(a))
		end, errB := strconv.Atoi(strings.TrimSpace(b))
		if errA != nil || errB != nil {
			return Selection{}, fmt.Errorf("%w: %q", ErrInvalidSelection, s)
		}
		return Range(start, end), nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %q", ErrInvalidSelection, s)
	}
	return Single(n), nil
}

// String renders the selection in ParseSelection's syntax
func (s Selection) String() string {
	switch s.Mode {
	case ModeRange:
		return fmt.Sprintf("%d-%d", s.Start, s.End)
	case ModeSingle:
		return strconv.Itoa(s.Page)
	default:
		return "all"
	}
}

// Span is a resolved selection: pages [Start, End) of the page list, 0-based
type Span struct {
	Mode  Mode
	Start int
	End   int
}

// Len is the number of pages in the span
func (s Span) Len() int {
	return s.End - s.Start
}

// FileName is the download name for the exported document
func (s Span) FileName() string {
	switch s.Mode {
	case ModeRange:
		return fmt.Sprintf("labels-pages-%d-to-%d.pdf", s.Start+1, s.End)
	case ModeSingle:
		return fmt.Sprintf("labels-page-%d.pdf", s.Start+1)
	default:
		return "labels-all.pdf"
	}
}

// Resolve validates the selection against total pages. A range is clamped
// to [1,total] and rejected if it is empty after clamping; a single page
// must exist.
func (s Selection) Resolve(total int) (Span, error) {
	if total <= 0 {
		return Span{}, ErrNothingToExport
	}

	switch s.Mode {
	case ModeAll, "":
		return Span{Mode: ModeAll, Start: 0, End: total}, nil

	case ModeRange:
		start, end := s.Start, s.End
		if start < 1 {
			start = 1
		}
		if end > total {
			end = total
		}
		if start > end {
			return Span{}, fmt.Errorf("%w: %d-%d of %d pages", ErrInvalidRange, s.Start, s.End, total)
		}
		return Span{Mode: ModeRange, Start: start - 1, End: end}, nil

	case ModeSingle:
		if s.Page < 1 || s.Page > total {
			return Span{}, fmt.Errorf("%w: page %d of %d", ErrInvalidIndex, s.Page, total)
		}
		return Span{Mode: ModeSingle, Start: s.Page - 1, End: s.Page}, nil

	default:
		return Span{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidSelection, s.Mode)
	}
}

// SpoolName is the file name used for a printer spool of a document named name
func SpoolName(name string) string {
	return strings.TrimSuffix(name, ".pdf") + ".bin"
}

// ContentType is the MIME type an export file is served with
func ContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".zip"):
		return "application/zip"
	case strings.HasSuffix(name, ".bin"):
		return "application/octet-stream"
	default:
		return "application/pdf"
	}
}
