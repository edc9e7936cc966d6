package printer

import (
	"bytes"
	"image"
)

// ESC/POS commands
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
)

// DefaultThreshold splits gray levels into black and white dots
const DefaultThreshold = 128

// Encoder generates ESC/POS commands from label sheets
type Encoder struct {
	buffer    *bytes.Buffer
	threshold uint8
}

// NewEncoder creates a new ESC/POS encoder
func NewEncoder(threshold uint8) *Encoder {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Encoder{
		buffer:    new(bytes.Buffer),
		threshold: threshold,
	}
}

// Initialize resets the printer
func (e *Encoder) Initialize() {
	e.buffer.Write([]byte{ESC, '@'})
}

// RasterImage emits img as a single GS v 0 raster bit image
func (e *Encoder) RasterImage(img image.Image) {
	bounds := img.Bounds()
	bytesPerLine := (bounds.Dx() + 7) / 8
	height := bounds.Dy()

	// GS v 0 m xL xH yL yH d1...dk
	e.buffer.Write([]byte{
		GS, 'v', '0', 0,
		byte(bytesPerLine), byte(bytesPerLine >> 8),
		byte(height), byte(height >> 8),
	})
	e.buffer.Write(toBitmap(img, e.threshold))
}

// Feed sends line feeds
func (e *Encoder) Feed(lines int) {
	for i := 0; i < lines; i++ {
		e.buffer.WriteByte(0x0A)
	}
}

// Cut sends a full cut
func (e *Encoder) Cut() {
	e.buffer.Write([]byte{GS, 'V', 0})
}

// Bytes returns the generated commands
func (e *Encoder) Bytes() []byte {
	return e.buffer.Bytes()
}

// Len is the number of bytes generated so far
func (e *Encoder) Len() int {
	return e.buffer.Len()
}

// Reset clears the buffer
func (e *Encoder) Reset() {
	e.buffer.Reset()
}

// toBitmap packs img into rows of 1-bit dots, MSB first, set bits print black
func toBitmap(img image.Image, threshold uint8) []byte {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	bytesPerLine := (width + 7) / 8
	bitmap := make([]byte, bytesPerLine*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, a := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			if a == 0 {
				continue
			}
			gray := uint8((r + g + b) / 3 >> 8)
			if gray < threshold {
				bitmap[y*bytesPerLine+x/8] |= 1 << (7 - x%8)
			}
		}
	}

	return bitmap
}

// EncodeSheet wraps one sheet in init, raster, feed and cut
func EncodeSheet(img image.Image, threshold uint8) []byte {
	e := NewEncoder(threshold)
	e.Initialize()
	e.RasterImage(img)
	e.Feed(3)
	e.Cut()
	return e.Bytes()
}
