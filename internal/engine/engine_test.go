package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/thereceipt/label-engine/internal/config"
	"github.com/thereceipt/label-engine/internal/export"
	"github.com/thereceipt/label-engine/internal/jobs"
	"github.com/thereceipt/label-engine/internal/pdfdoc"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.PagePause = 0
	cfg.Resolution = 1
	cfg.BlockSize = 2

	e, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func testTemplate() *labelformat.Template {
	tpl := &labelformat.Template{
		Name: "asset",
		Objects: []labelformat.Object{
			{Type: labelformat.TypeTextbox, Left: 10, Top: 10, Width: 200, Height: 30, Text: "Asset: {{id}}", FontSize: 20},
			{Type: labelformat.TypeTextbox, Left: 10, Top: 60, Width: 120, Height: 120, Text: "{{url}}"},
		},
	}
	labelformat.Normalize(tpl)
	return tpl
}

func testRecords(n int) []labelformat.Record {
	recs := make([]labelformat.Record, n)
	for i := range recs {
		recs[i] = labelformat.Record{"id": i + 1, "url": "https://x/7"}
	}
	return recs
}

func TestExport_Pages(t *testing.T) {
	e := newTestEngine(t)
	if err := e.LoadTemplate(testTemplate()); err != nil {
		t.Fatalf("Failed to load template: %v", err)
	}
	e.SetRecords(testRecords(20))

	var buf bytes.Buffer
	var last float64
	res, err := e.Export(context.Background(), ExportRequest{Selection: "all"}, &buf, func(p export.Progress) {
		last = p.Fraction
	})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	// 20 records on a 3x3 grid
	if res.Pages != 3 {
		t.Errorf("Expected 3 pages, got %d", res.Pages)
	}
	if res.Blocks != 2 {
		t.Errorf("Expected 2 blocks, got %d", res.Blocks)
	}
	if last != 1 {
		t.Errorf("Expected final progress 1, got %v", last)
	}

	n, err := pdfdoc.PageCount(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Failed to count pages: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 pages in the document, got %d", n)
	}
}

func TestValidate(t *testing.T) {
	e := newTestEngine(t)
	e.LoadTemplate(testTemplate())

	if err := e.Validate(ExportRequest{}); !errors.Is(err, export.ErrNoRecords) {
		t.Errorf("Expected ErrNoRecords, got %v", err)
	}

	e.SetRecords(testRecords(20))

	tests := []struct {
		name string
		req  ExportRequest
		want error
	}{
		{"all", ExportRequest{Selection: "all"}, nil},
		{"range", ExportRequest{Selection: "2-3"}, nil},
		{"reversed range", ExportRequest{Selection: "5-3"}, export.ErrInvalidRange},
		{"missing page", ExportRequest{Selection: "4"}, export.ErrInvalidIndex},
		{"garbage", ExportRequest{Selection: "x"}, export.ErrInvalidSelection},
		{"unknown mode", ExportRequest{Mode: "zip"}, export.ErrInvalidSelection},
		{"records", ExportRequest{Mode: ModeRecords, Selection: "5-3"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Validate(tt.req)
			if tt.want == nil && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSubmitExport(t *testing.T) {
	e := newTestEngine(t)
	e.LoadTemplate(testTemplate())
	e.SetRecords(testRecords(10))

	var mu sync.Mutex
	var events []string
	e.Subscribe(func(ev Event) {
		mu.Lock()
		events = append(events, ev.Type)
		mu.Unlock()
	})

	id, err := e.SubmitExport(ExportRequest{Selection: "2"})
	if err != nil {
		t.Fatalf("Failed to submit: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		job := e.Queue.GetJob(id)
		if job != nil && job.Status.Done() {
			if job.Status != jobs.StatusCompleted {
				t.Fatalf("Expected completed job, got %s (%s)", job.Status, job.Error)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for export job")
		}
		time.Sleep(20 * time.Millisecond)
	}

	out, err := e.Queue.Output(id)
	if err != nil {
		t.Fatalf("Failed to get output: %v", err)
	}
	if out.FileName != "labels-page-2.pdf" {
		t.Errorf("Expected labels-page-2.pdf, got %s", out.FileName)
	}
	if !bytes.HasPrefix(out.Data, []byte("%PDF")) {
		t.Error("Expected PDF output")
	}

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, ev := range events {
		if ev == jobs.EventCompleted {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected %s event, got %v", jobs.EventCompleted, events)
	}
}

func TestSubmitExport_Rejected(t *testing.T) {
	e := newTestEngine(t)
	e.LoadTemplate(testTemplate())
	e.SetRecords(testRecords(10))

	if _, err := e.SubmitExport(ExportRequest{Selection: "5-3"}); !export.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if _, err := e.SubmitExport(ExportRequest{Printer: "ftp://nowhere"}); err == nil {
		t.Error("Expected error for bad printer URI")
	}
	if len(e.Queue.GetAllJobs()) != 0 {
		t.Errorf("Expected no queued jobs, got %d", len(e.Queue.GetAllJobs()))
	}
}

func TestSaveSession(t *testing.T) {
	e := newTestEngine(t)
	e.LoadTemplate(testTemplate())

	if _, err := e.Session.Add(labelformat.Object{Type: labelformat.TypeRect, Width: 10, Height: 10}); err != nil {
		t.Fatalf("Failed to add object: %v", err)
	}
	if !e.Session.HasUnsavedChanges() {
		t.Fatal("Expected unsaved changes after add")
	}

	entry, err := e.SaveSession("shelf labels")
	if err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if entry.Name != "shelf labels" {
		t.Errorf("Expected name 'shelf labels', got %s", entry.Name)
	}
	if entry.Objects != 3 {
		t.Errorf("Expected 3 objects, got %d", entry.Objects)
	}
	if e.Session.HasUnsavedChanges() {
		t.Error("Expected no unsaved changes after save")
	}

	if err := e.OpenTemplate(entry.ID); err != nil {
		t.Fatalf("Failed to open saved template: %v", err)
	}
	if len(e.Session.Template().Objects) != 3 {
		t.Errorf("Expected 3 objects after reopening, got %d", len(e.Session.Template().Objects))
	}

	if !e.RemoveTemplate(entry.ID) {
		t.Error("Expected template to be removed")
	}
	if e.RemoveTemplate(entry.ID) {
		t.Error("Expected second remove to fail")
	}
}

func TestPreview(t *testing.T) {
	e := newTestEngine(t)
	e.LoadTemplate(testTemplate())
	e.SetRecords(testRecords(1))

	data, err := e.Preview(0)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("Expected PNG data")
	}

	thumb, err := e.Preview(100)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	if len(thumb) >= len(data) {
		t.Errorf("Expected thumbnail smaller than preview, got %d >= %d", len(thumb), len(data))
	}
}

func waitForJob(t *testing.T, e *Engine, id string) *jobs.Job {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for {
		job := e.Queue.GetJob(id)
		if job != nil && job.Status.Done() {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for export job")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSubmitExport_UsesSessionAtSubmit(t *testing.T) {
	e := newTestEngine(t)
	e.LoadTemplate(testTemplate())
	e.SetRecords(testRecords(20))

	// hold the worker so the export stays queued while the session changes
	release := make(chan struct{})
	e.Queue.Submit("hold", "hold", func(ctx context.Context, report func(float64)) (*jobs.Output, error) {
		<-release
		return &jobs.Output{}, nil
	})

	id, err := e.SubmitExport(ExportRequest{Selection: "3"})
	if err != nil {
		t.Fatalf("Failed to submit: %v", err)
	}

	e.SetRecords(testRecords(5))
	e.Session.Add(labelformat.Object{Type: labelformat.TypeTextbox, Width: 50, Height: 20, Text: "late"})
	close(release)

	job := waitForJob(t, e, id)
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("Expected completed job, got %s (%s)", job.Status, job.Error)
	}
	out, err := e.Queue.Output(id)
	if err != nil {
		t.Fatalf("Failed to get output: %v", err)
	}
	if out.FileName != "labels-page-3.pdf" || out.Pages != 1 {
		t.Errorf("Expected page 3 of the submitted records, got %s with %d pages", out.FileName, out.Pages)
	}
}

func TestExport_PrinterSpool(t *testing.T) {
	e := newTestEngine(t)
	e.LoadTemplate(testTemplate())
	e.SetRecords(testRecords(10))

	path := filepath.Join(t.TempDir(), "spool.bin")
	var buf bytes.Buffer
	res, err := e.Export(context.Background(), ExportRequest{Selection: "2", Printer: "file://" + path}, &buf, nil)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if res.FileName != "labels-page-2.bin" {
		t.Errorf("Expected labels-page-2.bin, got %s", res.FileName)
	}
	if export.ContentType(res.FileName) != "application/octet-stream" {
		t.Errorf("Expected octet-stream, got %s", export.ContentType(res.FileName))
	}
	if bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Error("Expected a printer spool, got a PDF")
	}

	spooled, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected spool file: %v", err)
	}
	if !bytes.Equal(spooled, buf.Bytes()) || len(spooled) == 0 {
		t.Error("Expected the printer and the output to receive the same spool")
	}
}

func TestSubmitExport_DefaultPrinter(t *testing.T) {
	e := newTestEngine(t)
	e.LoadTemplate(testTemplate())
	e.SetRecords(testRecords(10))

	if _, err := e.SubmitExport(ExportRequest{Printer: DefaultPrinter}); err == nil {
		t.Error("Expected error without a configured printer")
	}
	if _, err := e.SubmitExport(ExportRequest{Mode: ModeRecords, Printer: "file:///tmp/x.bin"}); !export.IsValidation(err) {
		t.Errorf("Expected validation error for per-record printing, got %v", err)
	}

	e.cfg.Printer = "file://" + filepath.Join(t.TempDir(), "spool.bin")
	id, err := e.SubmitExport(ExportRequest{Printer: DefaultPrinter})
	if err != nil {
		t.Fatalf("Failed to submit: %v", err)
	}

	job := waitForJob(t, e, id)
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("Expected completed job, got %s (%s)", job.Status, job.Error)
	}
	out, _ := e.Queue.Output(id)
	if out == nil || out.FileName != "labels-all.bin" {
		t.Errorf("Expected labels-all.bin, got %+v", out)
	}
}

func TestExport_SelectionCountsGridSheets(t *testing.T) {
	e := newTestEngine(t)
	tpl := &labelformat.Template{
		Name: "ean",
		Objects: []labelformat.Object{
			{Type: labelformat.TypeBarcode, Left: 10, Top: 10, Width: 300, Height: 100, Text: "{{code}}", Format: "EAN13"},
		},
	}
	labelformat.Normalize(tpl)
	if err := e.LoadTemplate(tpl); err != nil {
		t.Fatalf("Failed to load template: %v", err)
	}

	// every cell of the first sheet fails, so that sheet is dropped
	per := e.cfg.Grid.ItemsPerPage()
	var recs []labelformat.Record
	for i := 0; i < per; i++ {
		recs = append(recs, labelformat.Record{"code": "bad"})
	}
	for i := 0; i < per+1; i++ {
		recs = append(recs, labelformat.Record{"code": "590123412345"})
	}
	e.SetRecords(recs)

	var buf bytes.Buffer
	res, err := e.Export(context.Background(), ExportRequest{Selection: "2"}, &buf, nil)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if res.FileName != "labels-page-2.pdf" || res.Pages != 1 {
		t.Errorf("Expected sheet 2 alone, got %s with %d pages", res.FileName, res.Pages)
	}

	buf.Reset()
	if _, err := e.Export(context.Background(), ExportRequest{Selection: "1"}, &buf, nil); !errors.Is(err, export.ErrNothingToExport) {
		t.Errorf("Expected ErrNothingToExport for the dropped sheet, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("Expected no output for the dropped sheet")
	}

	buf.Reset()
	res, err = e.Export(context.Background(), ExportRequest{Selection: "all"}, &buf, nil)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if res.Pages != 2 {
		t.Errorf("Expected 2 surviving pages, got %d", res.Pages)
	}
}
