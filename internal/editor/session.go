package editor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// DefaultPreviewDelay matches the editor's typing debounce
const DefaultPreviewDelay = 300 * time.Millisecond

// PreviewFunc receives a template snapshot and the record to preview it with
type PreviewFunc func(tpl *labelformat.Template, record labelformat.Record)

// SessionOptions configures a Session
type SessionOptions struct {
	PreviewDelay time.Duration
	OnPreview    PreviewFunc
	Logger       *slog.Logger
}

// Status summarizes a session for callers
type Status struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Objects        int    `json:"objects"`
	Records        int    `json:"records"`
	Cursor         int    `json:"cursor"`
	Entries        int    `json:"entries"`
	SavedCursor    int    `json:"saved_cursor"`
	Unsaved        bool   `json:"unsaved"`
	QRColumn       string `json:"qr_column,omitempty"`
	FilenameColumn string `json:"filename_column,omitempty"`
}

// SessionState is the autosaved form of a session
type SessionState struct {
	Template       *labelformat.Template `json:"template"`
	Records        []labelformat.Record  `json:"records,omitempty"`
	QRColumn       string                `json:"qrColumn,omitempty"`
	FilenameColumn string                `json:"filenameColumn,omitempty"`
	SavedAt        time.Time             `json:"savedAt"`
}

// Session owns one template being edited, its history and its preview data
type Session struct {
	ID string

	mu             sync.Mutex
	store          *Store
	history        *History
	preview        *Debouncer
	onPreview      PreviewFunc
	records        []labelformat.Record
	qrColumn       string
	filenameColumn string
	hooks          []MutateHook
	log            *slog.Logger
}

// NewSession creates a session editing an empty template
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.PreviewDelay == 0 {
		opts.PreviewDelay = DefaultPreviewDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		ID:        uuid.New().String(),
		store:     NewStore(nil),
		onPreview: opts.OnPreview,
		log:       logger,
	}

	history, err := NewHistory(s.store)
	if err != nil {
		return nil, err
	}
	s.history = history
	s.preview = NewDebouncer(opts.PreviewDelay, s.firePreview)

	// History first, then the preview, then outside subscribers.
	s.store.OnMutate(func(m Mutation) {
		if err := s.history.Record(); err != nil {
			s.log.Error("failed to record history", "err", err)
		}
	})
	s.store.OnMutate(func(Mutation) {
		if s.onPreview != nil {
			s.preview.Trigger()
		}
	})
	s.store.OnMutate(func(m Mutation) {
		for _, hook := range s.hooks {
			hook(m)
		}
	})

	return s, nil
}

// OnMutate subscribes to every change of the session's template
func (s *Session) OnMutate(hook MutateHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Load replaces the template and starts a fresh, saved history
func (s *Session) Load(tpl *labelformat.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.locked = true
	s.store.replace(tpl, MutationLoad)
	s.history.locked = false

	return s.history.Reset()
}

// Template returns a snapshot of the live template
func (s *Session) Template() *labelformat.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Template()
}

// Object returns a copy of one object
func (s *Session) Object(id string) (labelformat.Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Object(id)
}

// Add adds an object and returns its id
func (s *Session) Add(obj labelformat.Object) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Add(obj)
}

// Remove removes an object
func (s *Session) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Remove(id)
}

// Modify patches an object
func (s *Session) Modify(id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Modify(id, patch)
}

// BringToFront moves an object to the top of the drawing order
func (s *Session) BringToFront(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.BringToFront(id)
}

// SendToBack moves an object to the bottom of the drawing order
func (s *Session) SendToBack(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SendToBack(id)
}

// Duplicate copies an object with the paste offset
func (s *Session) Duplicate(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Duplicate(id)
}

// ChangeCase upper- or lower-cases a text object
func (s *Session) ChangeCase(id, mode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ChangeCase(id, mode)
}

// Undo steps back in history
func (s *Session) Undo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Undo()
}

// Redo steps forward in history
func (s *Session) Redo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Redo()
}

// MarkSaved marks the current state as saved
func (s *Session) MarkSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.MarkSaved()
}

// HasUnsavedChanges is the signal consulted before discarding the session
func (s *Session) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.HasUnsavedChanges()
}

// Save writes the template to path and marks the session saved
func (s *Session) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Template().SaveToFile(path); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	s.history.MarkSaved()
	return nil
}

// SetRecords replaces the data rows used for preview and export
func (s *Session) SetRecords(records []labelformat.Record) {
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	if s.onPreview != nil {
		s.preview.Trigger()
	}
}

// Records returns the session's data rows
func (s *Session) Records() []labelformat.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records
}

// SetColumns chooses the QR column and the file name column. Empty keeps the default.
func (s *Session) SetColumns(qrColumn, filenameColumn string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qrColumn = qrColumn
	s.filenameColumn = filenameColumn
}

// Columns returns the QR column and the file name column
func (s *Session) Columns() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qrColumn, s.filenameColumn
}

// Snapshot is a consistent copy of what an export reads from the session
type Snapshot struct {
	Template       *labelformat.Template
	Records        []labelformat.Record
	QRColumn       string
	FilenameColumn string
}

// Snapshot copies the template, records and columns under one lock
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]labelformat.Record, len(s.records))
	copy(recs, s.records)
	return Snapshot{
		Template:       s.store.Template(),
		Records:        recs,
		QRColumn:       s.qrColumn,
		FilenameColumn: s.filenameColumn,
	}
}

// Status returns a summary of the session
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		ID:             s.ID,
		Name:           s.store.tpl.Name,
		Objects:        s.store.Len(),
		Records:        len(s.records),
		Cursor:         s.history.Cursor(),
		Entries:        s.history.Len(),
		SavedCursor:    s.history.SavedCursor(),
		Unsaved:        s.history.HasUnsavedChanges(),
		QRColumn:       s.qrColumn,
		FilenameColumn: s.filenameColumn,
	}
}

// Autosave writes the whole session state to path
func (s *Session) Autosave(path string) error {
	s.mu.Lock()
	state := SessionState{
		Template:       s.store.Template(),
		Records:        s.records,
		QRColumn:       s.qrColumn,
		FilenameColumn: s.filenameColumn,
		SavedAt:        time.Now(),
	}
	s.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Restore loads a state written by Autosave. The restored template starts a fresh history.
func (s *Session) Restore(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse session: %w", err)
	}
	if state.Template == nil {
		return fmt.Errorf("session has no template")
	}
	labelformat.Normalize(state.Template)
	if err := labelformat.Validate(state.Template); err != nil {
		return fmt.Errorf("invalid session template: %w", err)
	}

	if err := s.Load(state.Template); err != nil {
		return err
	}
	s.SetColumns(state.QRColumn, state.FilenameColumn)
	s.SetRecords(state.Records)

	s.log.Info("session restored", "path", path, "records", len(state.Records), "saved_at", state.SavedAt)
	return nil
}

// PreviewNow runs the preview callback immediately
func (s *Session) PreviewNow() {
	s.firePreview()
}

// Close stops any pending preview
func (s *Session) Close() {
	s.preview.Stop()
}

func (s *Session) firePreview() {
	if s.onPreview == nil {
		return
	}

	s.mu.Lock()
	tpl := s.store.Template()
	record := labelformat.Record{}
	if len(s.records) > 0 {
		record = s.records[0]
	}
	s.mu.Unlock()

	s.onPreview(tpl, record)
}
