package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/thereceipt/label-engine/internal/paginator"
	"github.com/thereceipt/label-engine/internal/renderer"
	"github.com/thereceipt/label-engine/internal/resolver"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// taggedImage carries the text drawn on it so blocks can record page order
type taggedImage struct {
	*image.RGBA
	tag string
}

type fakeSurface struct {
	tag string
}

func (s *fakeSurface) DrawObject(node resolver.Node) error {
	if node.Object.Text == "boom" {
		return errors.New("surface exploded")
	}
	s.tag += node.Object.Text
	return nil
}

func (s *fakeSurface) ToRasterImage() image.Image {
	return &taggedImage{RGBA: image.NewRGBA(image.Rect(0, 0, 1, 1)), tag: s.tag}
}

func (s *fakeSurface) ToVectorDocument(w io.Writer) error {
	_, err := io.WriteString(w, s.tag)
	return err
}

type fakeBlock struct {
	tags      []string
	closed    bool
	discarded bool
}

func (b *fakeBlock) AddPage(img image.Image) error {
	if b.closed {
		return errors.New("closed")
	}
	b.tags = append(b.tags, img.(*taggedImage).tag)
	return nil
}

func (b *fakeBlock) PageCount() int { return len(b.tags) }

func (b *fakeBlock) Close() error {
	b.closed = true
	return nil
}

func (b *fakeBlock) Discard() {
	b.discarded = true
}

type fakeWriter struct {
	mu      sync.Mutex
	opened  []*fakeBlock
	merged  int
	mergeOK bool
}

func (w *fakeWriter) NewBlock() (Block, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := &fakeBlock{}
	w.opened = append(w.opened, b)
	return b, nil
}

func (w *fakeWriter) Merge(blocks []Block, out io.Writer) error {
	w.merged++
	var tags []string
	for _, b := range blocks {
		fb := b.(*fakeBlock)
		if !fb.closed {
			return errors.New("open block")
		}
		tags = append(tags, fb.tags...)
	}
	_, err := io.WriteString(out, strings.Join(tags, ","))
	return err
}

func makePages(n int) []paginator.Page {
	pages := make([]paginator.Page, n)
	for i := range pages {
		pages[i] = paginator.Page{Index: i, Cells: []paginator.Cell{{
			Index:       0,
			RecordIndex: i,
			Nodes:       []resolver.Node{{Object: labelformat.Object{Type: labelformat.TypeText, Text: fmt.Sprint(i)}}},
		}}}
	}
	return pages
}

func newTestPipeline(w DocumentWriter) *Pipeline {
	return &Pipeline{
		Writer: w,
		NewSurface: func(width, height float64) renderer.RenderSurface {
			return &fakeSurface{}
		},
		Grid:   paginator.Grid{Rows: 1, Cols: 1, CellWidth: 10, CellHeight: 10},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func expectedOrder(start, end int) string {
	var parts []string
	for i := start; i < end; i++ {
		parts = append(parts, fmt.Sprint(i))
	}
	return strings.Join(parts, ",")
}

func TestExport_Blocks(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			fw := &fakeWriter{}
			p := newTestPipeline(fw)
			p.Workers = workers

			var out bytes.Buffer
			res, err := p.Export(context.Background(), makePages(137), All(), &out)
			if err != nil {
				t.Fatalf("Export failed: %v", err)
			}

			sizes := make([]int, len(fw.opened))
			for i, b := range fw.opened {
				sizes[i] = b.PageCount()
			}
			if fmt.Sprint(sizes) != "[40 40 40 17]" {
				t.Errorf("Expected blocks [40 40 40 17], got %v", sizes)
			}
			if res.Blocks != 4 || res.Pages != 137 {
				t.Errorf("Expected 4 blocks / 137 pages, got %d / %d", res.Blocks, res.Pages)
			}
			if res.FileName != "labels-all.pdf" {
				t.Errorf("Expected labels-all.pdf, got %s", res.FileName)
			}
			if out.String() != expectedOrder(0, 137) {
				t.Error("Expected merged pages in original order")
			}
		})
	}
}

func TestExport_RangeAndSingle(t *testing.T) {
	fw := &fakeWriter{}
	p := newTestPipeline(fw)

	var out bytes.Buffer
	res, err := p.Export(context.Background(), makePages(10), Range(3, 5), &out)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if out.String() != "2,3,4" {
		t.Errorf("Expected pages 2,3,4, got %s", out.String())
	}
	if res.FileName != "labels-pages-3-to-5.pdf" {
		t.Errorf("Expected labels-pages-3-to-5.pdf, got %s", res.FileName)
	}

	out.Reset()
	res, err = p.Export(context.Background(), makePages(10), Single(7), &out)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if out.String() != "6" || res.FileName != "labels-page-7.pdf" {
		t.Errorf("Expected page 6 in labels-page-7.pdf, got %s in %s", out.String(), res.FileName)
	}
}

func TestExport_InvalidSelectionWritesNothing(t *testing.T) {
	tests := []struct {
		name  string
		pages int
		sel   Selection
		want  error
	}{
		{"reversed range", 10, Range(5, 3), ErrInvalidRange},
		{"range past the end", 10, Range(12, 15), ErrInvalidRange},
		{"page zero", 10, Single(0), ErrInvalidIndex},
		{"page past the end", 10, Single(11), ErrInvalidIndex},
		{"no pages", 0, All(), ErrNothingToExport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw := &fakeWriter{}
			p := newTestPipeline(fw)

			var out bytes.Buffer
			_, err := p.Export(context.Background(), makePages(tt.pages), tt.sel, &out)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if !IsValidation(err) {
				t.Error("Expected a validation error")
			}
			if len(fw.opened) != 0 || out.Len() != 0 {
				t.Error("Expected no blocks and no output")
			}
		})
	}
}

func TestExport_ProgressMonotonic(t *testing.T) {
	p := newTestPipeline(&fakeWriter{})
	p.BlockSize = 7

	var seen []Progress
	p.OnProgress = func(pr Progress) { seen = append(seen, pr) }

	if _, err := p.Export(context.Background(), makePages(30), All(), io.Discard); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if len(seen) != 30 {
		t.Fatalf("Expected 30 progress reports, got %d", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i].Fraction <= seen[i-1].Fraction {
			t.Fatalf("Expected increasing progress, got %v then %v", seen[i-1].Fraction, seen[i].Fraction)
		}
	}
	if last := seen[len(seen)-1]; last.Fraction != 1 || last.PagesDone != 30 || last.TotalBlocks != 5 {
		t.Errorf("Expected final progress 1 after 30 pages in 5 blocks, got %+v", last)
	}
}

func TestExport_CancelDiscards(t *testing.T) {
	fw := &fakeWriter{}
	p := newTestPipeline(fw)
	p.BlockSize = 10

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.OnProgress = func(pr Progress) {
		if pr.PagesDone == 25 {
			cancel()
		}
	}

	var out bytes.Buffer
	_, err := p.Export(ctx, makePages(100), All(), &out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if out.Len() != 0 || fw.merged != 0 {
		t.Error("Expected nothing merged or written")
	}
	if len(fw.opened) != 3 {
		t.Errorf("Expected 3 blocks opened before cancel, got %d", len(fw.opened))
	}
	for i, b := range fw.opened {
		if !b.discarded {
			t.Errorf("Expected block %d to be discarded", i)
		}
	}
}

func TestExport_SurfaceFailureIsFatal(t *testing.T) {
	fw := &fakeWriter{}
	p := newTestPipeline(fw)

	pages := makePages(5)
	pages[3].Cells[0].Nodes[0].Object.Text = "boom"

	var out bytes.Buffer
	_, err := p.Export(context.Background(), pages, All(), &out)
	if err == nil || !strings.Contains(err.Error(), "surface exploded") {
		t.Fatalf("Expected surface error, got %v", err)
	}
	if IsValidation(err) {
		t.Error("Expected a fatal error, not a validation error")
	}
	if out.Len() != 0 || !fw.opened[0].discarded {
		t.Error("Expected the partial block discarded and no output")
	}
}

func TestExportSpan(t *testing.T) {
	fw := &fakeWriter{}
	p := newTestPipeline(fw)

	span, err := Range(2, 3).Resolve(5)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	var out bytes.Buffer
	res, err := p.ExportSpan(context.Background(), makePages(5)[1:3], span, &out)
	if err != nil {
		t.Fatalf("ExportSpan failed: %v", err)
	}
	if out.String() != "1,2" || res.FileName != "labels-pages-2-to-3.pdf" {
		t.Errorf("Expected pages 1,2 in labels-pages-2-to-3.pdf, got %s in %s", out.String(), res.FileName)
	}

	out.Reset()
	if _, err := p.ExportSpan(context.Background(), nil, span, &out); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("Expected ErrNothingToExport, got %v", err)
	}
	if out.Len() != 0 {
		t.Error("Expected no output")
	}
}
