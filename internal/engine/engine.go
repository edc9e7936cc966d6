// Package engine wires the template session, registry, record loading and
// export jobs behind one object shared by the API, the commands and the CLI
package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/thereceipt/label-engine/internal/config"
	"github.com/thereceipt/label-engine/internal/editor"
	"github.com/thereceipt/label-engine/internal/export"
	"github.com/thereceipt/label-engine/internal/jobs"
	"github.com/thereceipt/label-engine/internal/paginator"
	"github.com/thereceipt/label-engine/internal/pdfdoc"
	"github.com/thereceipt/label-engine/internal/printer"
	"github.com/thereceipt/label-engine/internal/records"
	"github.com/thereceipt/label-engine/internal/registry"
	"github.com/thereceipt/label-engine/internal/renderer"
	"github.com/thereceipt/label-engine/internal/resolver"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// Event names emitted besides the job events
const (
	EventSessionChanged  = "session_changed"
	EventTemplateAdded   = "template_added"
	EventTemplateRemoved = "template_removed"
)

// Export modes
const (
	ModePages   = "pages"
	ModeRecords = "records"
)

// DefaultPrinter in ExportRequest.Printer selects the configured printer
const DefaultPrinter = "default"

// Event is anything a listener may want to forward to clients
type Event struct {
	Type string      `json:"event"`
	Data interface{} `json:"data"`
}

// ExportRequest describes one export
type ExportRequest struct {
	Selection string `json:"selection"`
	Mode      string `json:"mode"`
	// Printer is a printer URI or DefaultPrinter; empty writes a PDF
	Printer string `json:"printer,omitempty"`
}

// Engine ties the editing session to rendering and export
type Engine struct {
	cfg      *config.Config
	Registry *registry.Registry
	Session  *editor.Session
	Queue    *jobs.Queue

	fonts  *renderer.FontSet
	images *renderer.ImageCache
	log    *slog.Logger

	mu        sync.RWMutex
	listeners []func(Event)
	preview   []byte
}

// New creates an engine from cfg. The registry lives under cfg.DataDir.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg, err := registry.New(cfg.TemplatesDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open template registry: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		Registry: reg,
		fonts:    renderer.NewFontSet(cfg.Fonts, cfg.Font),
		images:   renderer.NewImageCache(),
		log:      logger,
	}

	session, err := editor.NewSession(editor.SessionOptions{
		PreviewDelay: cfg.PreviewDelay,
		OnPreview:    e.refreshPreview,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	// Hooks run under the session lock, so only the mutation is sent
	session.OnMutate(func(m editor.Mutation) {
		e.emit(EventSessionChanged, map[string]interface{}{"mutation": m})
	})
	e.Session = session

	e.Queue = jobs.NewQueue(func(ev jobs.Event) {
		e.emit(ev.Type, ev.Job)
	}, logger)

	return e, nil
}

// Config returns the engine settings
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Subscribe registers a listener for engine events
func (e *Engine) Subscribe(fn func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) emit(kind string, data interface{}) {
	e.mu.RLock()
	listeners := append([]func(Event){}, e.listeners...)
	e.mu.RUnlock()

	for _, fn := range listeners {
		fn(Event{Type: kind, Data: data})
	}
}

// Close stops the queue and any pending preview
func (e *Engine) Close() {
	e.Queue.Stop()
	e.Session.Close()
}

// AddTemplate stores tpl in the registry
func (e *Engine) AddTemplate(tpl *labelformat.Template) (*registry.Entry, error) {
	entry, created, err := e.Registry.Add(tpl)
	if err != nil {
		return nil, err
	}
	if created {
		e.log.Info("✅ Template added", "id", entry.ID, "name", entry.Name)
		e.emit(EventTemplateAdded, entry)
	}
	return entry, nil
}

// RemoveTemplate deletes a template from the registry
func (e *Engine) RemoveTemplate(id string) bool {
	if !e.Registry.Remove(id) {
		return false
	}
	e.log.Info("🗑️ Template removed", "id", id)
	e.emit(EventTemplateRemoved, map[string]string{"id": id})
	return true
}

// OpenTemplate loads a registry template into the session
func (e *Engine) OpenTemplate(id string) error {
	tpl, err := e.Registry.Get(id)
	if err != nil {
		return err
	}
	return e.LoadTemplate(tpl)
}

// LoadTemplate replaces the session template
func (e *Engine) LoadTemplate(tpl *labelformat.Template) error {
	if err := labelformat.Validate(tpl); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	return e.Session.Load(tpl)
}

// SaveSession stores the session template in the registry and marks it saved
func (e *Engine) SaveSession(name string) (*registry.Entry, error) {
	tpl := e.Session.Template()
	if name != "" {
		tpl.Name = name
	}

	entry, err := e.AddTemplate(tpl)
	if err != nil {
		return nil, err
	}
	if name != "" && entry.Name != name {
		if err := e.Registry.SetName(entry.ID, name); err != nil {
			return nil, err
		}
		entry = e.Registry.GetEntry(entry.ID)
	}

	e.Session.MarkSaved()
	e.emit(EventSessionChanged, map[string]interface{}{"status": e.Session.Status()})
	return entry, nil
}

// LoadRecords reads a record file into the session
func (e *Engine) LoadRecords(path string) (*records.Set, error) {
	set, err := records.Load(path)
	if err != nil {
		return nil, err
	}
	e.SetRecords(set.Records)
	e.log.Info("📄 Records loaded", "path", path, "records", set.Len(), "columns", len(set.Columns))
	return set, nil
}

// SetRecords replaces the session records
func (e *Engine) SetRecords(recs []labelformat.Record) {
	e.Session.SetRecords(recs)
	e.emit(EventSessionChanged, map[string]interface{}{"status": e.Session.Status()})
}

// Resolver builds a resolver for the session's QR column
func (e *Engine) Resolver() *resolver.Resolver {
	qrField, _ := e.Session.Columns()
	return e.resolverFor(qrField)
}

func (e *Engine) resolverFor(qrField string) *resolver.Resolver {
	if qrField == "" {
		qrField = e.cfg.QRField
	}
	return resolver.New(resolver.Options{
		QRField:      qrField,
		CenterFields: e.cfg.CenterFields,
		Logger:       e.log,
	})
}

// NewSurface creates a render surface with the engine's fonts and image cache
func (e *Engine) NewSurface(width, height float64) renderer.RenderSurface {
	return renderer.NewSurface(width, height, renderer.Options{
		Resolution: e.cfg.Resolution,
		Fonts:      e.fonts,
		Images:     e.images,
		Logger:     e.log,
	})
}

// Paginate lays the session records out on sheets
func (e *Engine) Paginate() ([]paginator.Page, error) {
	snap := e.Session.Snapshot()
	p, err := e.newPaginator(snap.QRColumn)
	if err != nil {
		return nil, err
	}
	return p.Paginate(snap.Template, snap.Records), nil
}

func (e *Engine) newPaginator(qrField string) (*paginator.Paginator, error) {
	return paginator.New(e.cfg.Grid, e.resolverFor(qrField), paginator.Options{
		Workers: e.cfg.Workers,
		Logger:  e.log,
	})
}

// Export runs an export of the current session synchronously and writes
// the result to w
func (e *Engine) Export(ctx context.Context, req ExportRequest, w io.Writer, onProgress func(export.Progress)) (*export.Result, error) {
	return e.exportSnapshot(ctx, e.Session.Snapshot(), req, w, onProgress)
}

// exportSnapshot exports snap. Selection indexes count grid sheets, so a
// sheet dropped for having no rendered cells leaves a gap rather than
// shifting the pages after it.
func (e *Engine) exportSnapshot(ctx context.Context, snap editor.Snapshot, req ExportRequest, w io.Writer, onProgress func(export.Progress)) (*export.Result, error) {
	if err := e.validate(snap, req); err != nil {
		return nil, err
	}
	uri, err := e.printerURI(req.Printer)
	if err != nil {
		return nil, err
	}
	writer, err := e.documentWriter(uri)
	if err != nil {
		return nil, err
	}

	pipeline := &export.Pipeline{
		Writer:     writer,
		NewSurface: e.NewSurface,
		Grid:       e.cfg.Grid,
		BlockSize:  e.cfg.BlockSize,
		Workers:    e.cfg.Workers,
		PagePause:  e.cfg.PagePause,
		BlockPause: e.cfg.BlockPause,
		OnProgress: onProgress,
		Logger:     e.log,
	}

	if req.Mode == ModeRecords {
		return pipeline.ExportRecords(ctx, snap.Template, snap.Records, e.resolverFor(snap.QRColumn), snap.FilenameColumn, w)
	}

	sel, _ := export.ParseSelection(req.Selection)
	span, err := sel.Resolve(e.cfg.Grid.PageCount(len(snap.Records)))
	if err != nil {
		return nil, err
	}

	p, err := e.newPaginator(snap.QRColumn)
	if err != nil {
		return nil, err
	}
	pages := p.PaginateSheets(snap.Template, snap.Records, span.Start, span.End)

	res, err := pipeline.ExportSpan(ctx, pages, span, w)
	if err != nil {
		return nil, err
	}
	if uri != "" {
		res.FileName = export.SpoolName(res.FileName)
	}
	return res, nil
}

// Validate rejects a request before it is queued
func (e *Engine) Validate(req ExportRequest) error {
	return e.validate(e.Session.Snapshot(), req)
}

func (e *Engine) validate(snap editor.Snapshot, req ExportRequest) error {
	switch req.Mode {
	case "", ModePages, ModeRecords:
	default:
		return fmt.Errorf("%w: unknown mode %q", export.ErrInvalidSelection, req.Mode)
	}
	if req.Mode == ModeRecords && req.Printer != "" {
		return fmt.Errorf("%w: per-record export writes PDFs and cannot go to a printer", export.ErrInvalidSelection)
	}

	n := len(snap.Records)
	if n == 0 {
		return export.ErrNoRecords
	}
	if req.Mode == ModeRecords {
		return nil
	}

	sel, err := export.ParseSelection(req.Selection)
	if err != nil {
		return err
	}
	_, err = sel.Resolve(e.cfg.Grid.PageCount(n))
	return err
}

// SubmitExport validates req and queues it as a background job. The job
// exports the session as it is now; later edits do not reach it.
func (e *Engine) SubmitExport(req ExportRequest) (string, error) {
	snap := e.Session.Snapshot()
	if err := e.validate(snap, req); err != nil {
		return "", err
	}
	uri, err := e.printerURI(req.Printer)
	if err != nil {
		return "", err
	}
	if uri != "" {
		if _, err := printer.ParseURI(uri); err != nil {
			return "", err
		}
	}

	label := fmt.Sprintf("%s (%s)", exportMode(req), selectionLabel(req))
	id := e.Queue.Submit("export", label, func(ctx context.Context, report func(float64)) (*jobs.Output, error) {
		var buf bytes.Buffer
		res, err := e.exportSnapshot(ctx, snap, req, &buf, func(p export.Progress) {
			report(p.Fraction)
		})
		if err != nil {
			return nil, err
		}
		return &jobs.Output{FileName: res.FileName, Data: buf.Bytes(), Pages: res.Pages}, nil
	})
	return id, nil
}

// printerURI expands the "default" printer to the configured one
func (e *Engine) printerURI(uri string) (string, error) {
	if uri != DefaultPrinter {
		return uri, nil
	}
	if e.cfg.Printer == "" {
		return "", fmt.Errorf("no default printer configured (set LABEL_PRINTER)")
	}
	return e.cfg.Printer, nil
}

func (e *Engine) documentWriter(uri string) (export.DocumentWriter, error) {
	if uri == "" {
		return pdfdoc.NewWriter(e.cfg.PaperSize()), nil
	}
	target, err := printer.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return printer.NewWriter(&target, printer.DefaultThreshold), nil
}

// Preview renders the session template with its first record as a PNG.
// width > 0 produces a thumbnail of that width.
func (e *Engine) Preview(width int) ([]byte, error) {
	record := labelformat.Record{}
	if recs := e.Session.Records(); len(recs) > 0 {
		record = recs[0]
	}

	img, err := e.RenderRecord(e.Session.Template(), record)
	if err != nil {
		return nil, err
	}
	return encodePNG(img, width)
}

// LastPreview returns the PNG produced by the latest debounced refresh
func (e *Engine) LastPreview() []byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.preview
}

// RenderRecord draws tpl stamped with one record at design size
func (e *Engine) RenderRecord(tpl *labelformat.Template, record labelformat.Record) (image.Image, error) {
	nodes, err := e.Resolver().ResolveAll(tpl.Objects, record)
	if err != nil {
		return nil, err
	}

	surface := e.NewSurface(tpl.DesignWidth, tpl.DesignHeight)
	for _, node := range nodes {
		if err := surface.DrawObject(node); err != nil {
			return nil, err
		}
	}
	return surface.ToRasterImage(), nil
}

func (e *Engine) refreshPreview(tpl *labelformat.Template, record labelformat.Record) {
	img, err := e.RenderRecord(tpl, record)
	if err != nil {
		e.log.Warn("⚠️ Preview failed", "err", err)
		return
	}
	data, err := encodePNG(img, 0)
	if err != nil {
		e.log.Warn("⚠️ Preview failed", "err", err)
		return
	}

	e.mu.Lock()
	e.preview = data
	e.mu.Unlock()
}

func encodePNG(img image.Image, width int) ([]byte, error) {
	if width > 0 && width < img.Bounds().Dx() {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

func exportMode(req ExportRequest) string {
	if req.Mode == ModeRecords {
		return "records"
	}
	if req.Printer != "" {
		return "print"
	}
	return "pdf"
}

func selectionLabel(req ExportRequest) string {
	if req.Mode == ModeRecords {
		return "all records"
	}
	sel, err := export.ParseSelection(req.Selection)
	if err != nil {
		return req.Selection
	}
	return sel.String()
}
