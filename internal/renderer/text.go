package renderer

import (
	"image/color"
	"os"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

const defaultFontSize = 40.0

var systemFonts = []string{
	"/System/Library/Fonts/Helvetica.ttc",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"C:\\Windows\\Fonts\\arial.ttf",
}

var systemBoldFonts = []string{
	"/System/Library/Fonts/Supplemental/Arial Bold.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Bold.ttf",
	"C:\\Windows\\Fonts\\arialbd.ttf",
}

// FontSet resolves font families to parsed faces. Safe for concurrent use.
type FontSet struct {
	families map[string]string
	fallback string

	mu     sync.Mutex
	parsed map[string]*truetype.Font
	failed map[string]bool
}

// NewFontSet creates a new font set. families maps a family name (or
// "name:bold") to a TTF path; fallback is tried before system fonts.
func NewFontSet(families map[string]string, fallback string) *FontSet {
	fams := make(map[string]string, len(families))
	for k, v := range families {
		fams[strings.ToLower(k)] = v
	}
	return &FontSet{
		families: fams,
		fallback: fallback,
		parsed:   make(map[string]*truetype.Font),
		failed:   make(map[string]bool),
	}
}

// Face returns a face for the family at size points. The bool is false when
// no TTF could be loaded and the fixed basicfont face was returned instead.
func (fs *FontSet) Face(family, weight string, size float64) (font.Face, bool) {
	bold := weight == "bold" || weight == "700" || weight == "800" || weight == "900"

	for _, path := range fs.candidates(strings.ToLower(family), bold) {
		if f := fs.load(path); f != nil {
			return truetype.NewFace(f, &truetype.Options{Size: size}), true
		}
	}
	return basicfont.Face7x13, false
}

func (fs *FontSet) candidates(family string, bold bool) []string {
	var out []string
	if bold {
		if p, ok := fs.families[family+":bold"]; ok {
			out = append(out, p)
		}
	}
	if p, ok := fs.families[family]; ok {
		out = append(out, p)
	}
	if fs.fallback != "" {
		out = append(out, fs.fallback)
	}
	if bold {
		out = append(out, systemBoldFonts...)
	}
	return append(out, systemFonts...)
}

func (fs *FontSet) load(path string) *truetype.Font {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if f, ok := fs.parsed[path]; ok {
		return f
	}
	if fs.failed[path] {
		return nil
	}

	data, err := os.ReadFile(path)
	if err == nil {
		var f *truetype.Font
		if f, err = truetype.Parse(data); err == nil {
			fs.parsed[path] = f
			return f
		}
	}
	fs.failed[path] = true
	return nil
}

func (s *Surface) drawText(obj *labelformat.Object) error {
	if obj.Text == "" {
		return nil
	}

	size := obj.FontSize
	if size <= 0 {
		size = defaultFontSize
	}

	face, scalable := s.fonts.Face(obj.FontFamily, obj.FontWeight, size)
	s.ctx.SetFontFace(face)

	sx, sy := obj.ScaleX, obj.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}

	s.ctx.Translate(obj.Left, obj.Top)
	s.ctx.Scale(sx, sy)

	if bg, ok := parseColor(obj.BackgroundColor); ok && obj.Width > 0 && obj.Height > 0 {
		s.ctx.SetColor(bg)
		s.ctx.DrawRectangle(0, 0, obj.Width, obj.Height)
		s.ctx.Fill()
	}

	// local units per design unit; the fixed 13px face is stretched to size
	k := 1.0
	if !scalable {
		k = size / 13
		s.ctx.Scale(k, k)
	}
	width := (obj.Width - 2*obj.Padding) / k
	pad := obj.Padding / k

	fill, ok := parseColor(obj.Fill)
	if !ok {
		fill = color.Black
	}
	s.ctx.SetColor(fill)

	spacing := obj.LineHeight
	if spacing <= 0 {
		spacing = 1.16
	}
	align := textAlign(obj.TextAlign)

	if obj.Type == labelformat.TypeTextbox && width > 0 {
		s.ctx.DrawStringWrapped(obj.Text, pad, pad, 0, 0, width, spacing, align)
		return nil
	}

	lines := strings.Split(obj.Text, "\n")
	var blockWidth float64
	for _, line := range lines {
		if w, _ := s.ctx.MeasureString(line); w > blockWidth {
			blockWidth = w
		}
	}

	lineHeight := s.ctx.FontHeight() * spacing
	for i, line := range lines {
		w, _ := s.ctx.MeasureString(line)
		x := pad
		switch align {
		case gg.AlignCenter:
			x += (blockWidth - w) / 2
		case gg.AlignRight:
			x += blockWidth - w
		}
		s.ctx.DrawStringAnchored(line, x, pad+float64(i)*lineHeight, 0, 1)
	}
	return nil
}

func textAlign(a string) gg.Align {
	switch a {
	case "center":
		return gg.AlignCenter
	case "right":
		return gg.AlignRight
	default:
		return gg.AlignLeft
	}
}
