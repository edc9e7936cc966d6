package renderer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/thereceipt/label-engine/internal/resolver"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// ImageCache keeps decoded image sources across surfaces
type ImageCache struct {
	mu     sync.Mutex
	images map[string]image.Image
}

// NewImageCache creates a new image cache
func NewImageCache() *ImageCache {
	return &ImageCache{images: make(map[string]image.Image)}
}

// Load decodes src, a data URL or a file path
func (c *ImageCache) Load(src string) (image.Image, error) {
	c.mu.Lock()
	img, ok := c.images[src]
	c.mu.Unlock()
	if ok {
		return img, nil
	}

	img, err := decodeSource(src)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[src] = img
	c.mu.Unlock()
	return img, nil
}

func decodeSource(src string) (image.Image, error) {
	if strings.HasPrefix(src, "data:") {
		comma := strings.IndexByte(src, ',')
		if comma < 0 || !strings.Contains(src[:comma], ";base64") {
			return nil, fmt.Errorf("unsupported data URL")
		}
		data, err := base64.StdEncoding.DecodeString(src[comma+1:])
		if err != nil {
			return nil, fmt.Errorf("failed to decode data URL: %w", err)
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		return img, nil
	}

	file, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func (s *Surface) drawImage(obj *labelformat.Object) error {
	if obj.Src == "" {
		return nil
	}

	img, err := s.images.Load(obj.Src)
	if err != nil {
		// a broken image leaves a gap, the rest of the label still prints
		s.log.Warn("image not drawn", "object", obj.ID, "err", err)
		return nil
	}

	w, h := resolver.EffectiveSize(obj)
	if w < 1 || h < 1 {
		b := img.Bounds()
		sx, sy := obj.ScaleX, obj.ScaleY
		if sx == 0 {
			sx = 1
		}
		if sy == 0 {
			sy = 1
		}
		w, h = float64(b.Dx())*abs(sx), float64(b.Dy())*abs(sy)
	}
	if w < 1 || h < 1 {
		return nil
	}

	if b := img.Bounds(); b.Dx() != int(w) || b.Dy() != int(h) {
		img = imaging.Resize(img, int(w+0.5), int(h+0.5), imaging.Lanczos)
	}

	s.ctx.DrawImage(img, int(obj.Left+0.5), int(obj.Top+0.5))
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
