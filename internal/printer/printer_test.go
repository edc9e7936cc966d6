package printer

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/thereceipt/label-engine/internal/document"
)

var _ document.Writer = (*Writer)(nil)

func checkerImage() image.Image {
	// 10x2: left half black on row 0, white elsewhere
	img := image.NewRGBA(image.Rect(0, 0, 10, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.White)
		}
	}
	for x := 0; x < 5; x++ {
		img.Set(x, 0, color.Black)
	}
	img.Set(9, 1, color.Black)
	return img
}

func TestToBitmap(t *testing.T) {
	bitmap := toBitmap(checkerImage(), DefaultThreshold)

	want := []byte{0xF8, 0x00, 0x00, 0x40}
	if !bytes.Equal(bitmap, want) {
		t.Errorf("Expected %x, got %x", want, bitmap)
	}
}

func TestEncodeSheet(t *testing.T) {
	data := EncodeSheet(checkerImage(), 0)

	if !bytes.HasPrefix(data, []byte{ESC, '@', GS, 'v', '0', 0, 2, 0, 2, 0}) {
		t.Errorf("Expected init and raster header, got %x", data[:10])
	}
	if !bytes.HasSuffix(data, []byte{0x0A, 0x0A, 0x0A, GS, 'V', 0}) {
		t.Errorf("Expected feed and cut, got %x", data[len(data)-6:])
	}
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{"tcp://10.0.0.5:9100", Target{Scheme: "tcp", Host: "10.0.0.5", Port: 9100}, false},
		{"tcp://printer.local", Target{Scheme: "tcp", Host: "printer.local", Port: 9100}, false},
		{"usb://04b8:0202", Target{Scheme: "usb", VID: 0x04b8, PID: 0x0202}, false},
		{"serial:///dev/ttyUSB0?baud=19200", Target{Scheme: "serial", Device: "/dev/ttyUSB0", Baud: 19200}, false},
		{"serial:///dev/ttyS1", Target{Scheme: "serial", Device: "/dev/ttyS1", Baud: 9600}, false},
		{"file:///tmp/spool.bin", Target{Scheme: "file", Device: "/tmp/spool.bin"}, false},
		{"file://", Target{}, true},
		{"usb://04b8", Target{}, true},
		{"usb://zzzz:0202", Target{}, true},
		{"tcp://:9100", Target{}, true},
		{"lpt://1", Target{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseURI(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
			if !tt.wantErr {
				back, err := ParseURI(got.String())
				if err != nil || back != got {
					t.Errorf("Expected %s to round trip, got %+v (%v)", got, back, err)
				}
			}
		})
	}
}

func fillBlock(t *testing.T, w *Writer, sheets int) document.Block {
	t.Helper()
	b, _ := w.NewBlock()
	for i := 0; i < sheets; i++ {
		if err := b.AddPage(checkerImage()); err != nil {
			t.Fatalf("Failed to add sheet: %v", err)
		}
	}
	b.Close()
	return b
}

func TestWriter_Spool(t *testing.T) {
	w := NewWriter(nil, 0)
	blocks := []document.Block{fillBlock(t, w, 2), fillBlock(t, w, 1)}

	var out bytes.Buffer
	if err := w.Merge(blocks, &out); err != nil {
		t.Fatalf("Failed to merge: %v", err)
	}

	sheet := EncodeSheet(checkerImage(), 0)
	if !bytes.Equal(out.Bytes(), bytes.Repeat(sheet, 3)) {
		t.Error("Expected three sheets in order")
	}
	if cuts := bytes.Count(out.Bytes(), []byte{GS, 'V', 0}); cuts != 3 {
		t.Errorf("Expected 3 cuts, got %d", cuts)
	}
}

func TestWriter_Network(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			received <- nil
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	target, err := ParseURI("tcp://" + ln.Addr().String())
	if err != nil {
		t.Fatalf("Failed to parse target: %v", err)
	}
	w := NewWriter(&target, 0)

	var out bytes.Buffer
	if err := w.Merge([]document.Block{fillBlock(t, w, 1)}, &out); err != nil {
		t.Fatalf("Failed to print: %v", err)
	}

	data := <-received
	if !bytes.Equal(data, out.Bytes()) || len(data) == 0 {
		t.Error("Expected the printer to receive the spool")
	}
}

func TestWriter_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spool.bin")
	target, err := ParseURI("file://" + path)
	if err != nil {
		t.Fatalf("Failed to parse target: %v", err)
	}
	w := NewWriter(&target, 0)

	if err := w.Merge([]document.Block{fillBlock(t, w, 2)}, nil); err != nil {
		t.Fatalf("Failed to spool: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected spool file: %v", err)
	}
	if !bytes.Equal(data, bytes.Repeat(EncodeSheet(checkerImage(), 0), 2)) {
		t.Error("Expected two sheets in the spool file")
	}
}

func TestWriter_RejectsDiscarded(t *testing.T) {
	w := NewWriter(nil, 0)
	b := fillBlock(t, w, 1)
	b.Discard()
	if err := w.Merge([]document.Block{b}, io.Discard); err == nil {
		t.Error("Expected error merging a discarded block")
	}
}
