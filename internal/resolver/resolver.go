// Package resolver stamps data records onto template objects
package resolver

import (
	"fmt"
	"image"
	"log/slog"
	"regexp"
	"strings"

	"github.com/skip2/go-qrcode"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// TypeQR marks a node generated from a QR slot
const TypeQR = "qr"

// DefaultQRField is the record field encoded into QR slots
const DefaultQRField = "url"

var tokenPattern = regexp.MustCompile(`{{\s*(\w+)\s*}}`)

// Node is a template object after substitution, ready to draw
type Node struct {
	Object labelformat.Object
	// Image holds generated pixels for QR and barcode nodes
	Image image.Image
	// Missing lists placeholder keys the record had no value for
	Missing []string
	// Dropped is set when a QR slot had nothing to encode
	Dropped bool
}

// Options configures a Resolver
type Options struct {
	QRField        string
	QRLevel        qrcode.RecoveryLevel
	CenterFields   []string
	CenterMinWidth float64
	Logger         *slog.Logger
}

// Resolver substitutes record values into template objects
type Resolver struct {
	opts Options
	qrs  *qrCache
	log  *slog.Logger
}

// New creates a new resolver
func New(opts Options) *Resolver {
	if opts.QRField == "" {
		opts.QRField = DefaultQRField
	}
	if opts.QRLevel == 0 {
		opts.QRLevel = qrcode.Medium
	}
	if opts.CenterMinWidth == 0 {
		opts.CenterMinWidth = 250
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		opts: opts,
		qrs:  newQRCache(512),
		log:  logger,
	}
}

// QRField returns the record field QR slots read from
func (r *Resolver) QRField() string {
	return r.opts.QRField
}

// IsQRSlot reports whether obj is a text object holding only the QR token
func (r *Resolver) IsQRSlot(obj *labelformat.Object) bool {
	if !obj.IsText() {
		return false
	}
	m := tokenPattern.FindStringSubmatch(strings.TrimSpace(obj.Text))
	return m != nil && m[0] == strings.TrimSpace(obj.Text) && m[1] == r.opts.QRField
}

// Resolve renders one object against one record. The input object is never modified.
func (r *Resolver) Resolve(obj labelformat.Object, record labelformat.Record) (Node, error) {
	resolved := obj.Clone()

	if r.IsQRSlot(&resolved) {
		return r.resolveQRSlot(resolved, record)
	}

	node := Node{Object: resolved}

	if resolved.IsText() || resolved.Type == labelformat.TypeBarcode {
		raw := resolved.Text
		text, missing := Substitute(raw, record)
		for _, key := range missing {
			r.log.Warn("placeholder has no value", "key", key, "object", resolved.ID)
		}
		node.Object.Text = text
		node.Missing = missing

		if resolved.Type == labelformat.TypeTextbox {
			r.applyCentering(&node.Object, raw)
		}
	}

	if resolved.Type == labelformat.TypeBarcode {
		if node.Object.Text == "" {
			node.Dropped = true
			return node, nil
		}
		w, h := EffectiveSize(&node.Object)
		img, err := encodeBarcode(node.Object.Format, node.Object.Text, int(w), int(h))
		if err != nil {
			return node, fmt.Errorf("failed to encode barcode %q: %w", node.Object.Text, err)
		}
		node.Image = img
	}

	return node, nil
}

// ResolveAll resolves every object in order, skipping dropped QR slots
func (r *Resolver) ResolveAll(objects []labelformat.Object, record labelformat.Record) ([]Node, error) {
	nodes := make([]Node, 0, len(objects))
	for i := range objects {
		node, err := r.Resolve(objects[i], record)
		if err != nil {
			return nil, fmt.Errorf("object[%d]: %w", i, err)
		}
		if node.Dropped {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (r *Resolver) resolveQRSlot(slot labelformat.Object, record labelformat.Record) (Node, error) {
	value, ok := record.Lookup(r.opts.QRField)
	if !ok || value == "" {
		return Node{Object: slot, Dropped: true}, nil
	}

	box := slot
	if box.Width == 0 {
		box.Width = 100
	}
	if box.Height == 0 {
		box.Height = 100
	}
	w, h := EffectiveSize(&box)
	size := w
	if h < size {
		size = h
	}

	img, err := r.QRImage(value, int(size))
	if err != nil {
		return Node{Object: slot}, err
	}

	qr := labelformat.Object{
		ID:     slot.ID,
		Type:   TypeQR,
		Left:   slot.Left + (w-size)/2,
		Top:    slot.Top + (h-size)/2,
		Width:  size,
		Height: size,
		Angle:  slot.Angle,
		ScaleX: 1,
		ScaleY: 1,
		Text:   value,
	}

	return Node{Object: qr, Image: img}, nil
}

func (r *Resolver) applyCentering(obj *labelformat.Object, raw string) {
	for _, field := range r.opts.CenterFields {
		if strings.Contains(raw, "{{"+field+"}}") {
			obj.TextAlign = "center"
			if obj.Width < r.opts.CenterMinWidth {
				obj.Width = r.opts.CenterMinWidth
			}
			return
		}
	}
}

// Substitute replaces {{key}} tokens with record values. Keys the record
// lacks stay as literal tokens and are returned in missing.
func Substitute(text string, record labelformat.Record) (string, []string) {
	var missing []string

	out := tokenPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := tokenPattern.FindStringSubmatch(match)[1]
		value, ok := record.Lookup(key)
		if !ok {
			missing = append(missing, key)
			return match
		}
		return value
	})

	return out, missing
}

// Tokens returns the distinct placeholder keys used in text, in order of appearance
func Tokens(text string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}

// EffectiveSize is the drawn size of an object after its scale factors
func EffectiveSize(obj *labelformat.Object) (float64, float64) {
	w := obj.Width * obj.ScaleX
	h := obj.Height * obj.ScaleY
	if w < 0 {
		w = -w
	}
	if h < 0 {
		h = -h
	}
	return w, h
}

// MapOutsideTokens applies f to the literal text between placeholders,
// leaving the tokens themselves untouched
func MapOutsideTokens(text string, f func(string) string) string {
	var b strings.Builder
	last := 0
	for _, loc := range tokenPattern.FindAllStringIndex(text, -1) {
		b.WriteString(f(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(f(text[last:]))
	return b.String()
}
