// Package pdfdoc writes label sheets into PDF block documents and merges them
package pdfdoc

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/thereceipt/label-engine/internal/document"
)

// Fixed document dates keep output byte-stable across runs
var documentDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func init() {
	// pdfcpu would otherwise create a config dir under the user's home
	api.DisableConfigDir()
}

// Writer produces fpdf block documents and merges them with pdfcpu
type Writer struct {
	paper  PaperSize
	margin float64
}

// NewWriter creates a new writer on the given paper
func NewWriter(paper PaperSize) *Writer {
	if paper.Width <= 0 || paper.Height <= 0 {
		paper = A4Size
	}
	return &Writer{paper: paper, margin: 20}
}

// WithMargin sets the page margin in pt
func (w *Writer) WithMargin(margin float64) *Writer {
	w.margin = margin
	return w
}

// PaperSize returns the page size
func (w *Writer) PaperSize() PaperSize {
	return w.paper
}

// NewBlock starts a new block document
func (w *Writer) NewBlock() (document.Block, error) {
	return newBlock(w.paper, w.margin), nil
}

// Merge concatenates closed blocks page for page into out
func (w *Writer) Merge(blocks []document.Block, out io.Writer) error {
	if len(blocks) == 0 {
		return fmt.Errorf("no blocks to merge")
	}

	readers := make([]io.ReadSeeker, 0, len(blocks))
	for i, b := range blocks {
		blk, ok := b.(*Block)
		if !ok {
			return fmt.Errorf("block %d was not produced by this writer", i)
		}
		if !blk.closed || blk.discarded {
			return fmt.Errorf("block %d is not closed", i)
		}
		readers = append(readers, bytes.NewReader(blk.buf.Bytes()))
	}

	if len(readers) == 1 {
		if _, err := io.Copy(out, readers[0]); err != nil {
			return fmt.Errorf("failed to write document: %w", err)
		}
		return nil
	}

	if err := api.MergeRaw(readers, out, false, newConfiguration()); err != nil {
		return fmt.Errorf("failed to merge blocks: %w", err)
	}
	return nil
}

// Block is one fpdf document held in memory
type Block struct {
	pdf    *fpdf.Fpdf
	paper  PaperSize
	margin float64
	pages  int
	buf    bytes.Buffer
	closed bool

	discarded bool
}

func newBlock(paper PaperSize, margin float64) *Block {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: paper.Width, Ht: paper.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreationDate(documentDate)
	pdf.SetModificationDate(documentDate)
	pdf.SetCreator("label-engine", true)
	pdf.SetCatalogSort(true)

	return &Block{pdf: pdf, paper: paper, margin: margin}
}

// AddPage appends img as a new page, scaled to fit inside the margins
func (b *Block) AddPage(img image.Image) error {
	if b.closed {
		return fmt.Errorf("block already closed")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode page: %w", err)
	}

	name := fmt.Sprintf("page-%d", b.pages+1)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	b.pdf.RegisterImageOptionsReader(name, opts, &buf)

	x, y, w, h := fitImage(img.Bounds(), b.paper, b.margin)
	b.pdf.AddPage()
	b.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")

	if err := b.pdf.Error(); err != nil {
		return fmt.Errorf("failed to add page: %w", err)
	}
	b.pages++
	return nil
}

// PageCount returns the pages added so far
func (b *Block) PageCount() int {
	return b.pages
}

// Close materializes the document bytes
func (b *Block) Close() error {
	if b.closed {
		return nil
	}
	if err := b.pdf.Output(&b.buf); err != nil {
		return fmt.Errorf("failed to write block: %w", err)
	}
	b.closed = true
	b.pdf = nil
	return nil
}

// Discard drops the block's contents
func (b *Block) Discard() {
	b.pdf = nil
	b.buf = bytes.Buffer{}
	b.pages = 0
	b.closed = true
	b.discarded = true
}

// Bytes returns the closed document
func (b *Block) Bytes() []byte {
	return b.buf.Bytes()
}

// fitImage centers the image horizontally and keeps its aspect ratio.
// Images smaller than the printable area are placed 1px to 1pt.
func fitImage(bounds image.Rectangle, paper PaperSize, margin float64) (x, y, w, h float64) {
	iw, ih := float64(bounds.Dx()), float64(bounds.Dy())
	aw, ah := paper.Width-2*margin, paper.Height-2*margin

	scale := 1.0
	if iw > aw {
		scale = aw / iw
	}
	if ih*scale > ah {
		scale = ah / ih
	}

	w, h = iw*scale, ih*scale
	return (paper.Width - w) / 2, margin, w, h
}

// WriteImage writes a single page document of exactly paper size with img stretched over it
func WriteImage(w io.Writer, img image.Image, paper PaperSize) error {
	b := newBlock(paper, 0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode page: %w", err)
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	b.pdf.RegisterImageOptionsReader("page", opts, &buf)
	b.pdf.AddPage()
	b.pdf.ImageOptions("page", 0, 0, paper.Width, paper.Height, false, opts, 0, "")

	return b.pdf.Output(w)
}

// PageCount counts the pages of a PDF
func PageCount(rs io.ReadSeeker) (int, error) {
	n, err := api.PageCount(rs, newConfiguration())
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
