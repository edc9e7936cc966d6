package editor

import (
	"encoding/json"
	"fmt"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// History is a linear undo/redo stack of serialized store snapshots
type History struct {
	store       *Store
	entries     [][]byte
	cursor      int
	savedCursor int
	locked      bool
}

// NewHistory creates a history whose single entry is the store's current
// template, marked as saved
func NewHistory(store *Store) (*History, error) {
	h := &History{store: store}
	if err := h.Reset(); err != nil {
		return nil, err
	}
	return h, nil
}

// Reset discards all entries and starts over from the live template
func (h *History) Reset() error {
	snap, err := h.snapshot()
	if err != nil {
		return err
	}
	h.entries = [][]byte{snap}
	h.cursor = 0
	h.savedCursor = 0
	h.locked = false
	return nil
}

// Record appends the live template as a new entry, discarding any redo branch.
// It does nothing while an undo or redo is being replayed.
func (h *History) Record() error {
	if h.locked {
		return nil
	}

	snap, err := h.snapshot()
	if err != nil {
		return err
	}

	h.entries = append(h.entries[:h.cursor+1], snap)
	h.cursor = len(h.entries) - 1
	return nil
}

// Undo steps back one entry. It reports whether anything changed.
func (h *History) Undo() (bool, error) {
	if h.cursor == 0 {
		return false, nil
	}
	return true, h.moveTo(h.cursor - 1)
}

// Redo steps forward one entry. It reports whether anything changed.
func (h *History) Redo() (bool, error) {
	if h.cursor == len(h.entries)-1 {
		return false, nil
	}
	return true, h.moveTo(h.cursor + 1)
}

func (h *History) moveTo(cursor int) error {
	var tpl labelformat.Template
	if err := json.Unmarshal(h.entries[cursor], &tpl); err != nil {
		return fmt.Errorf("failed to restore history entry %d: %w", cursor, err)
	}

	h.locked = true
	defer func() { h.locked = false }()

	h.cursor = cursor
	h.store.replace(&tpl, MutationRestore)
	return nil
}

// MarkSaved records the current entry as the last saved state
func (h *History) MarkSaved() {
	h.savedCursor = h.cursor
}

// HasUnsavedChanges reports whether the live template differs from the last save
func (h *History) HasUnsavedChanges() bool {
	return h.cursor != h.savedCursor
}

// Cursor returns the index of the entry matching the live template
func (h *History) Cursor() int {
	return h.cursor
}

// SavedCursor returns the index of the last saved entry
func (h *History) SavedCursor() int {
	return h.savedCursor
}

// Len returns the number of entries
func (h *History) Len() int {
	return len(h.entries)
}

// Locked reports whether a replay is in progress
func (h *History) Locked() bool {
	return h.locked
}

func (h *History) snapshot() ([]byte, error) {
	data, err := json.Marshal(h.store.tpl)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot template: %w", err)
	}
	return data, nil
}
