// Package editor holds the live template being edited and its undo history
package editor

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/thereceipt/label-engine/internal/resolver"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// Mutation kinds
const (
	MutationAdd     = "add"
	MutationRemove  = "remove"
	MutationModify  = "modify"
	MutationReorder = "reorder"
	MutationRestore = "restore"
	MutationLoad    = "load"
)

// PasteOffset is how far a duplicated object is shifted from its source
const PasteOffset = 15.0

// Mutation describes one change to the store
type Mutation struct {
	Kind     string `json:"kind"`
	ObjectID string `json:"object_id,omitempty"`
}

// MutateHook is called synchronously after every store change
type MutateHook func(Mutation)

// Patch is a partial object in JSON field names, merged over the existing object
type Patch map[string]interface{}

// Store is the mutable scene being edited
type Store struct {
	tpl   *labelformat.Template
	hooks []MutateHook
}

// NewStore creates a store holding a copy of tpl
func NewStore(tpl *labelformat.Template) *Store {
	if tpl == nil {
		tpl = &labelformat.Template{}
		labelformat.Normalize(tpl)
	}
	return &Store{tpl: tpl.Clone()}
}

// OnMutate subscribes a hook. Hooks run in subscription order.
func (s *Store) OnMutate(hook MutateHook) {
	s.hooks = append(s.hooks, hook)
}

func (s *Store) notify(kind, id string) {
	m := Mutation{Kind: kind, ObjectID: id}
	for _, hook := range s.hooks {
		hook(m)
	}
}

// Template returns a snapshot of the live template
func (s *Store) Template() *labelformat.Template {
	return s.tpl.Clone()
}

// Len returns the number of objects
func (s *Store) Len() int {
	return len(s.tpl.Objects)
}

// Object returns a copy of the object with the given id
func (s *Store) Object(id string) (labelformat.Object, bool) {
	i := s.tpl.IndexOf(id)
	if i < 0 {
		return labelformat.Object{}, false
	}
	return s.tpl.Objects[i].Clone(), true
}

// Add appends an object and returns its id. Objects without an id, or with
// one already in use, get a fresh one.
func (s *Store) Add(obj labelformat.Object) (string, error) {
	if obj.ScaleX == 0 {
		obj.ScaleX = 1
	}
	if obj.ScaleY == 0 {
		obj.ScaleY = 1
	}
	if err := labelformat.ValidateObject(&obj); err != nil {
		return "", fmt.Errorf("invalid object: %w", err)
	}

	if obj.ID == "" || s.tpl.IndexOf(obj.ID) >= 0 {
		obj.ID = uuid.New().String()
	}

	s.tpl.Objects = append(s.tpl.Objects, obj)
	s.notify(MutationAdd, obj.ID)

	return obj.ID, nil
}

// Remove deletes the object with the given id
func (s *Store) Remove(id string) error {
	i := s.tpl.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("object not found: %s", id)
	}

	s.tpl.Objects = append(s.tpl.Objects[:i], s.tpl.Objects[i+1:]...)
	s.notify(MutationRemove, id)

	return nil
}

// Modify merges patch into the object with the given id. The id itself cannot be patched.
func (s *Store) Modify(id string, patch Patch) error {
	i := s.tpl.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("object not found: %s", id)
	}

	updated, err := applyPatch(s.tpl.Objects[i], patch)
	if err != nil {
		return err
	}
	updated.ID = id

	if err := labelformat.ValidateObject(&updated); err != nil {
		return fmt.Errorf("invalid object: %w", err)
	}

	s.tpl.Objects[i] = updated
	s.notify(MutationModify, id)

	return nil
}

func applyPatch(obj labelformat.Object, patch Patch) (labelformat.Object, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return obj, fmt.Errorf("failed to encode object: %w", err)
	}

	fields := make(map[string]interface{})
	if err := json.Unmarshal(data, &fields); err != nil {
		return obj, fmt.Errorf("failed to decode object: %w", err)
	}
	for k, v := range patch {
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return obj, fmt.Errorf("failed to encode patch: %w", err)
	}

	var out labelformat.Object
	if err := json.Unmarshal(merged, &out); err != nil {
		return obj, fmt.Errorf("invalid patch: %w", err)
	}
	return out, nil
}

// BringToFront moves the object to the top of the drawing order
func (s *Store) BringToFront(id string) error {
	return s.moveTo(id, len(s.tpl.Objects)-1)
}

// SendToBack moves the object to the bottom of the drawing order
func (s *Store) SendToBack(id string) error {
	return s.moveTo(id, 0)
}

func (s *Store) moveTo(id string, index int) error {
	old := s.tpl.IndexOf(id)
	if old < 0 {
		return fmt.Errorf("object not found: %s", id)
	}
	if old == index {
		return nil
	}

	objs := s.tpl.Objects
	obj := objs[old]
	// Shift the neighbours to fill the gap and open the target slot.
	if old < index {
		copy(objs[old:], objs[old+1:index+1])
	} else {
		copy(objs[index+1:], objs[index:old])
	}
	objs[index] = obj

	s.notify(MutationReorder, id)
	return nil
}

// Duplicate copies an object, offset down and right, and returns the copy's id
func (s *Store) Duplicate(id string) (string, error) {
	obj, ok := s.Object(id)
	if !ok {
		return "", fmt.Errorf("object not found: %s", id)
	}

	obj.ID = ""
	obj.Left += PasteOffset
	obj.Top += PasteOffset

	return s.Add(obj)
}

// ChangeCase rewrites a text object's content to upper or lower case
func (s *Store) ChangeCase(id, mode string) error {
	obj, ok := s.Object(id)
	if !ok {
		return fmt.Errorf("object not found: %s", id)
	}
	if !obj.IsText() {
		return fmt.Errorf("object %s has no text", id)
	}

	var caser cases.Caser
	switch mode {
	case "upper":
		caser = cases.Upper(language.Und)
	case "lower":
		caser = cases.Lower(language.Und)
	default:
		return fmt.Errorf("unknown case mode: %s (must be upper or lower)", mode)
	}

	// Placeholders keep their case so they still match record fields.
	text := resolver.MapOutsideTokens(obj.Text, caser.String)
	return s.Modify(id, Patch{"text": text})
}

// Clear removes every object
func (s *Store) Clear() {
	s.tpl.Objects = []labelformat.Object{}
	s.notify(MutationRemove, "")
}

// replace swaps in a new live template. kind is reported to hooks.
func (s *Store) replace(tpl *labelformat.Template, kind string) {
	s.tpl = tpl.Clone()
	if kind == MutationLoad {
		assignIDs(s.tpl)
	}
	s.notify(kind, "")
}

// assignIDs gives every object without an id, or with a repeated one, a fresh id
func assignIDs(tpl *labelformat.Template) {
	seen := make(map[string]bool, len(tpl.Objects))
	for i := range tpl.Objects {
		obj := &tpl.Objects[i]
		if obj.ID == "" || seen[obj.ID] {
			obj.ID = uuid.New().String()
		}
		seen[obj.ID] = true
	}
}
