package pdfdoc

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/thereceipt/label-engine/internal/document"
)

var _ document.Writer = (*Writer)(nil)

func testImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func buildBlock(t *testing.T, w *Writer, pages int) document.Block {
	t.Helper()
	b, err := w.NewBlock()
	if err != nil {
		t.Fatalf("Failed to open block: %v", err)
	}
	for i := 0; i < pages; i++ {
		shade := uint8(40 * i)
		if err := b.AddPage(testImage(54, 54, color.RGBA{R: shade, A: 255})); err != nil {
			t.Fatalf("Failed to add page: %v", err)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Failed to close block: %v", err)
	}
	return b
}

func TestWriter_MergeBlocks(t *testing.T) {
	w := NewWriter(A4Size)
	blocks := []document.Block{buildBlock(t, w, 3), buildBlock(t, w, 2), buildBlock(t, w, 1)}

	var out bytes.Buffer
	if err := w.Merge(blocks, &out); err != nil {
		t.Fatalf("Failed to merge: %v", err)
	}

	n, err := PageCount(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("Failed to count pages: %v", err)
	}
	if n != 6 {
		t.Errorf("Expected 6 pages, got %d", n)
	}
}

func TestWriter_SingleBlock(t *testing.T) {
	w := NewWriter(LetterSize)
	b := buildBlock(t, w, 4)

	var out bytes.Buffer
	if err := w.Merge([]document.Block{b}, &out); err != nil {
		t.Fatalf("Failed to merge: %v", err)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("%PDF-")) {
		t.Error("Expected PDF header")
	}
	n, err := PageCount(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("Failed to count pages: %v", err)
	}
	if n != 4 {
		t.Errorf("Expected 4 pages, got %d", n)
	}
}

func TestWriter_Reproducible(t *testing.T) {
	w := NewWriter(A4Size)
	a := buildBlock(t, w, 2).(*Block).Bytes()
	b := buildBlock(t, w, 2).(*Block).Bytes()
	if !bytes.Equal(a, b) {
		t.Error("Expected identical output for identical pages")
	}
}

func TestWriter_RejectsOpenOrDiscarded(t *testing.T) {
	w := NewWriter(A4Size)

	open, _ := w.NewBlock()
	if err := open.AddPage(testImage(10, 10, color.Black)); err != nil {
		t.Fatalf("Failed to add page: %v", err)
	}
	if err := w.Merge([]document.Block{open}, &bytes.Buffer{}); err == nil {
		t.Error("Expected error merging an open block")
	}

	discarded := buildBlock(t, w, 1)
	discarded.Discard()
	if err := w.Merge([]document.Block{discarded}, &bytes.Buffer{}); err == nil {
		t.Error("Expected error merging a discarded block")
	}

	if err := w.Merge(nil, &bytes.Buffer{}); err == nil {
		t.Error("Expected error merging nothing")
	}
}

func TestBlock_AddAfterClose(t *testing.T) {
	w := NewWriter(A4Size)
	b := buildBlock(t, w, 1)
	if err := b.AddPage(testImage(10, 10, color.Black)); err == nil {
		t.Error("Expected error adding to a closed block")
	}
	if b.PageCount() != 1 {
		t.Errorf("Expected 1 page, got %d", b.PageCount())
	}
}

func TestFitImage(t *testing.T) {
	x, y, w, h := fitImage(image.Rect(0, 0, 540, 540), A4Size, 20)
	if w != 540 || h != 540 {
		t.Errorf("Expected 1:1 placement, got %vx%v", w, h)
	}
	if math.Abs(x-(A4Size.Width-540)/2) > 1e-9 || y != 20 {
		t.Errorf("Expected centered at top margin, got (%v,%v)", x, y)
	}

	_, _, w, h = fitImage(image.Rect(0, 0, 2000, 1000), A4Size, 20)
	if math.Abs(w-(A4Size.Width-40)) > 1e-9 || math.Abs(h-w/2) > 1e-9 {
		t.Errorf("Expected downscale to printable width, got %vx%v", w, h)
	}
}

func TestParsePaperSize(t *testing.T) {
	tests := []struct {
		in      string
		want    PaperSize
		wantErr bool
	}{
		{"", A4Size, false},
		{"A4", A4Size, false},
		{"letter", LetterSize, false},
		{"300x400", PaperSize{Name: "custom", Width: 300, Height: 400}, false},
		{"tabloid", PaperSize{}, true},
		{"0x400", PaperSize{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePaperSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestInspect(t *testing.T) {
	w := NewWriter(A4Size)
	b := buildBlock(t, w, 3).(*Block)

	path := filepath.Join(t.TempDir(), "labels.pdf")
	if err := os.WriteFile(path, b.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	info, err := Inspect(path)
	if err != nil {
		t.Fatalf("Failed to inspect: %v", err)
	}
	if info.Pages != 3 {
		t.Errorf("Expected 3 pages, got %d", info.Pages)
	}
	if info.Version == "" {
		t.Error("Expected a version")
	}
	if math.Abs(info.PageWidth-A4Size.Width) > 1 || math.Abs(info.PageHeight-A4Size.Height) > 1 {
		t.Errorf("Expected A4 page, got %vx%v", info.PageWidth, info.PageHeight)
	}
}

func TestWriteImage(t *testing.T) {
	var out bytes.Buffer
	err := WriteImage(&out, testImage(55, 60, color.White), PaperSize{Name: "surface", Width: 550, Height: 600})
	if err != nil {
		t.Fatalf("Failed to write image document: %v", err)
	}
	n, err := PageCount(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("Failed to count pages: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 page, got %d", n)
	}
}
