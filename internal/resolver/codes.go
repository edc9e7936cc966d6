package resolver

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"
	"github.com/disintegration/imaging"
	"github.com/skip2/go-qrcode"
)

type qrKey struct {
	value string
	size  int
}

type qrEntry struct {
	img image.Image
	png []byte
}

// qrCache memoizes generated QR codes. Generation is deterministic, so a
// cached entry is indistinguishable from a fresh one.
type qrCache struct {
	mu      sync.Mutex
	entries map[qrKey]qrEntry
	max     int
}

func newQRCache(max int) *qrCache {
	return &qrCache{
		entries: make(map[qrKey]qrEntry),
		max:     max,
	}
}

func (c *qrCache) get(k qrKey) (qrEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	return e, ok
}

func (c *qrCache) put(k qrKey, e qrEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.max {
		c.entries = make(map[qrKey]qrEntry)
	}
	c.entries[k] = e
}

func (r *Resolver) generateQR(value string, size int) (qrEntry, error) {
	if size < 1 {
		return qrEntry{}, fmt.Errorf("qr slot too small: %dpx", size)
	}

	key := qrKey{value: value, size: size}
	if e, ok := r.qrs.get(key); ok {
		return e, nil
	}

	qr, err := qrcode.New(value, r.opts.QRLevel)
	if err != nil {
		return qrEntry{}, fmt.Errorf("failed to generate qr code: %w", err)
	}

	// Image grows to the symbol's native size when size is smaller than
	// the modules plus quiet zone; the slot box is fixed, so shrink it back
	img := qr.Image(size)
	if b := img.Bounds(); b.Dx() > size || b.Dy() > size {
		img = imaging.Resize(img, size, size, imaging.NearestNeighbor)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return qrEntry{}, fmt.Errorf("failed to encode qr code: %w", err)
	}

	e := qrEntry{img: img, png: buf.Bytes()}
	r.qrs.put(key, e)
	return e, nil
}

// QRImage returns the QR code for value as a size×size image
func (r *Resolver) QRImage(value string, size int) (image.Image, error) {
	e, err := r.generateQR(value, size)
	if err != nil {
		return nil, err
	}
	return e.img, nil
}

// QRPNG returns the PNG encoding of the QR code for value
func (r *Resolver) QRPNG(value string, size int) ([]byte, error) {
	e, err := r.generateQR(value, size)
	if err != nil {
		return nil, err
	}
	return e.png, nil
}

func encodeBarcode(format, value string, width, height int) (image.Image, error) {
	if format == "" {
		format = "CODE128"
	}
	if height <= 0 {
		height = 80
	}

	var bc barcode.Barcode
	var err error

	switch format {
	case "CODE39":
		bc, err = code39.Encode(value, false, true)
	case "EAN13", "EAN8":
		bc, err = ean.Encode(value)
	default:
		bc, err = code128.Encode(value)
	}
	if err != nil {
		return nil, err
	}

	// barcode.Scale refuses to shrink below one pixel per module
	if native := bc.Bounds().Dx(); width < native {
		width = native
	}

	return barcode.Scale(bc, width, height)
}
