package renderer

import (
	"image/color"
	"strconv"
	"strings"
)

var namedColors = map[string]color.Color{
	"black": color.Black,
	"white": color.White,
	"red":   color.RGBA{R: 255, A: 255},
	"green": color.RGBA{G: 128, A: 255},
	"blue":  color.RGBA{B: 255, A: 255},
	"gray":  color.RGBA{R: 128, G: 128, B: 128, A: 255},
	"grey":  color.RGBA{R: 128, G: 128, B: 128, A: 255},
}

// parseColor understands #rgb, #rrggbb, rgb(), rgba() and a few names.
// Empty, "transparent" and unparseable values report false.
func parseColor(s string) (color.Color, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "transparent" || s == "none" {
		return nil, false
	}
	if c, ok := namedColors[s]; ok {
		return c, true
	}

	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return nil, false
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return nil, false
		}
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
	}

	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, false
	}
	fn := s[:open]
	if fn != "rgb" && fn != "rgba" {
		return nil, false
	}
	parts := strings.Split(s[open+1:len(s)-1], ",")
	if len(parts) < 3 {
		return nil, false
	}

	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return nil, false
		}
		rgb[i] = uint8(v)
	}

	alpha := 1.0
	if len(parts) > 3 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			return nil, false
		}
		alpha = a
	}
	if alpha <= 0 {
		return nil, false
	}
	if alpha > 1 {
		alpha = 1
	}

	// color.RGBA is premultiplied
	return color.RGBA{
		R: uint8(float64(rgb[0]) * alpha),
		G: uint8(float64(rgb[1]) * alpha),
		B: uint8(float64(rgb[2]) * alpha),
		A: uint8(255 * alpha),
	}, true
}
