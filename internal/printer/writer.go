package printer

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/thereceipt/label-engine/internal/document"
)

// Writer turns export blocks into ESC/POS spools, one cut per sheet
type Writer struct {
	target    *Target
	threshold uint8
	dial      func(Target) (Connection, error)
}

// NewWriter creates a writer that prints to target. A nil target only
// writes the spool to the Merge destination.
func NewWriter(target *Target, threshold uint8) *Writer {
	return &Writer{target: target, threshold: threshold, dial: Dial}
}

// NewBlock starts a new spool block
func (w *Writer) NewBlock() (document.Block, error) {
	return &Block{enc: NewEncoder(w.threshold)}, nil
}

// Merge streams the blocks in order to the printer and to out
func (w *Writer) Merge(blocks []document.Block, out io.Writer) error {
	readers := make([]io.Reader, 0, len(blocks))
	for i, b := range blocks {
		blk, ok := b.(*Block)
		if !ok {
			return fmt.Errorf("block %d was not produced by this writer", i)
		}
		if !blk.closed || blk.discarded {
			return fmt.Errorf("block %d is not closed", i)
		}
		readers = append(readers, bytes.NewReader(blk.enc.Bytes()))
	}
	spool := io.MultiReader(readers...)

	if w.target == nil {
		if _, err := io.Copy(out, spool); err != nil {
			return fmt.Errorf("failed to write spool: %w", err)
		}
		return nil
	}

	conn, err := w.dial(*w.target)
	if err != nil {
		return err
	}
	defer conn.Close()

	dst := io.Writer(conn)
	if out != nil {
		dst = io.MultiWriter(conn, out)
	}
	if _, err := io.Copy(dst, spool); err != nil {
		return fmt.Errorf("failed to send to printer %s: %w", w.target, err)
	}
	return nil
}

// Block accumulates encoded sheets
type Block struct {
	enc       *Encoder
	pages     int
	closed    bool
	discarded bool
}

// AddPage encodes one sheet followed by a cut
func (b *Block) AddPage(img image.Image) error {
	if b.closed {
		return fmt.Errorf("block already closed")
	}
	b.enc.Initialize()
	b.enc.RasterImage(img)
	b.enc.Feed(3)
	b.enc.Cut()
	b.pages++
	return nil
}

// PageCount returns the sheets encoded so far
func (b *Block) PageCount() int {
	return b.pages
}

// Close seals the block
func (b *Block) Close() error {
	b.closed = true
	return nil
}

// Discard drops the encoded bytes
func (b *Block) Discard() {
	b.enc.Reset()
	b.pages = 0
	b.closed = true
	b.discarded = true
}
