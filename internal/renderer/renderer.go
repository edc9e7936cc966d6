// Package renderer draws resolved label objects onto raster surfaces
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"

	"github.com/fogleman/gg"

	"github.com/thereceipt/label-engine/internal/pdfdoc"
	"github.com/thereceipt/label-engine/internal/resolver"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// RenderSurface is anything resolved nodes can be drawn onto
type RenderSurface interface {
	DrawObject(node resolver.Node) error
	ToRasterImage() image.Image
	ToVectorDocument(w io.Writer) error
}

// Options configures a Surface
type Options struct {
	// Resolution multiplies the pixel density of the raster
	Resolution float64
	Fonts      *FontSet
	Images     *ImageCache
	Logger     *slog.Logger
}

// Surface is a gg backed RenderSurface with a white background
type Surface struct {
	width  float64
	height float64
	ctx    *gg.Context
	fonts  *FontSet
	images *ImageCache
	log    *slog.Logger
}

// NewSurface creates a new surface of width x height design units
func NewSurface(width, height float64, opts Options) *Surface {
	res := opts.Resolution
	if res <= 0 {
		res = 1
	}
	if opts.Fonts == nil {
		opts.Fonts = NewFontSet(nil, "")
	}
	if opts.Images == nil {
		opts.Images = NewImageCache()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pw := int(width*res + 0.5)
	ph := int(height*res + 0.5)
	if pw < 1 {
		pw = 1
	}
	if ph < 1 {
		ph = 1
	}

	ctx := gg.NewContext(pw, ph)
	ctx.SetColor(color.White)
	ctx.Clear()
	ctx.Scale(res, res)

	return &Surface{
		width:  width,
		height: height,
		ctx:    ctx,
		fonts:  opts.Fonts,
		images: opts.Images,
		log:    logger,
	}
}

// Size returns the surface size in design units
func (s *Surface) Size() (float64, float64) {
	return s.width, s.height
}

// DrawObject draws one node at its own position
func (s *Surface) DrawObject(node resolver.Node) error {
	if node.Dropped {
		return nil
	}

	obj := &node.Object

	s.ctx.Push()
	defer s.ctx.Pop()

	if obj.Angle != 0 {
		s.ctx.RotateAbout(gg.Radians(obj.Angle), obj.Left, obj.Top)
	}

	if node.Image != nil {
		return s.drawGenerated(node)
	}

	switch obj.Type {
	case labelformat.TypeText, labelformat.TypeTextbox:
		return s.drawText(obj)
	case labelformat.TypeImage:
		return s.drawImage(obj)
	case labelformat.TypeRect:
		return s.drawRect(obj)
	case labelformat.TypeBarcode:
		// barcode without pixels means nothing to encode
		return nil
	default:
		return fmt.Errorf("unsupported object type: %s", obj.Type)
	}
}

// ToRasterImage returns the drawn pixels
func (s *Surface) ToRasterImage() image.Image {
	return s.ctx.Image()
}

// ToVectorDocument writes a one page PDF sized to the surface with the raster embedded
func (s *Surface) ToVectorDocument(w io.Writer) error {
	size := pdfdoc.PaperSize{Name: "surface", Width: s.width, Height: s.height}
	if err := pdfdoc.WriteImage(w, s.ToRasterImage(), size); err != nil {
		return fmt.Errorf("failed to write surface document: %w", err)
	}
	return nil
}

// drawGenerated places QR and barcode pixels, which are already at their final size
func (s *Surface) drawGenerated(node resolver.Node) error {
	obj := &node.Object
	s.ctx.DrawImage(node.Image, int(obj.Left+0.5), int(obj.Top+0.5))
	return nil
}

func (s *Surface) drawRect(obj *labelformat.Object) error {
	w, h := resolver.EffectiveSize(obj)
	s.ctx.DrawRectangle(obj.Left, obj.Top, w, h)

	if c, ok := parseColor(obj.Fill); ok {
		s.ctx.SetColor(c)
		s.ctx.FillPreserve()
	}
	if c, ok := parseColor(obj.Stroke); ok && obj.StrokeWidth > 0 {
		s.ctx.SetColor(c)
		s.ctx.SetLineWidth(obj.StrokeWidth)
		s.ctx.StrokePreserve()
	}
	s.ctx.ClearPath()
	return nil
}
