package pdfdoc

import (
	"fmt"
	"strconv"
	"strings"
)

// PaperSize is a page size in pt (1" = 72pt)
type PaperSize struct {
	Name   string
	Width  float64
	Height float64
}

var (
	A4Size     = PaperSize{Name: "A4", Width: 595.28, Height: 841.89}  // 210mm x 297mm
	LetterSize = PaperSize{Name: "Letter", Width: 612, Height: 792} // 8.5" x 11"
)

// ParsePaperSize accepts "a4", "letter" or a custom "WIDTHxHEIGHT" in pt
func ParsePaperSize(s string) (PaperSize, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "a4":
		return A4Size, nil
	case "letter":
		return LetterSize, nil
	}

	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) == 2 {
		w, errW := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		h, errH := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errW == nil && errH == nil && w > 0 && h > 0 {
			return PaperSize{Name: "custom", Width: w, Height: h}, nil
		}
	}
	return PaperSize{}, fmt.Errorf("unknown paper size: %q", s)
}
