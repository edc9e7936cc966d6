// Package registry keeps a persistent library of label templates
package registry

import (
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

const indexFile = "registry.json"

// ErrNotFound is returned for unknown template ids
var ErrNotFound = errors.New("template not found")

// Registry stores templates as files in a directory plus a JSON index
type Registry struct {
	dir  string
	data map[string]*Entry // keyed by identity
	mu   sync.RWMutex
}

// Entry is the index record for one stored template
type Entry struct {
	ID          string    `json:"id"`
	IdentityKey string    `json:"identity_key"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Objects     int       `json:"objects"`
	File        string    `json:"file"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// New opens or creates a registry in dir
func New(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry dir: %w", err)
	}

	r := &Registry{
		dir:  dir,
		data: make(map[string]*Entry),
	}

	if err := r.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load registry: %w", err)
		}
	}

	return r, nil
}

// Dir returns the registry directory
func (r *Registry) Dir() string {
	return r.dir
}

// Add stores tpl unless an identical template is already registered.
// The bool reports whether a new entry was created.
func (r *Registry) Add(tpl *labelformat.Template) (*Entry, bool, error) {
	if err := labelformat.Validate(tpl); err != nil {
		return nil, false, fmt.Errorf("invalid template: %w", err)
	}

	key, err := identityKey(tpl)
	if err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.data[key]; exists {
		entryCopy := *entry
		return &entryCopy, false, nil
	}

	id := uuid.New().String()
	name := tpl.Name
	if name == "" {
		name = "template-" + id[:8]
	}
	now := time.Now().UTC()

	entry := &Entry{
		ID:          id,
		IdentityKey: key,
		Name:        name,
		Description: tpl.Description,
		Objects:     len(tpl.Objects),
		File:        id + ".json",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	stored := tpl.Clone()
	stored.Name = name
	if err := stored.SaveToFile(filepath.Join(r.dir, entry.File)); err != nil {
		return nil, false, fmt.Errorf("failed to store template: %w", err)
	}

	r.data[key] = entry
	if err := r.save(); err != nil {
		return nil, false, fmt.Errorf("failed to save registry: %w", err)
	}

	entryCopy := *entry
	return &entryCopy, true, nil
}

// Get loads a stored template
func (r *Registry) Get(id string) (*labelformat.Template, error) {
	r.mu.RLock()
	entry := r.find(id)
	var file string
	if entry != nil {
		file = entry.File
	}
	r.mu.RUnlock()

	if entry == nil {
		return nil, ErrNotFound
	}

	tpl, err := labelformat.ParseFile(filepath.Join(r.dir, file))
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", id, err)
	}
	return tpl, nil
}

// GetEntry returns a copy of the index entry, or nil
func (r *Registry) GetEntry(id string) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry := r.find(id); entry != nil {
		entryCopy := *entry
		return &entryCopy
	}
	return nil
}

// SetName renames a template in the index and in its file
func (r *Registry) SetName(id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.find(id)
	if entry == nil {
		return ErrNotFound
	}

	path := filepath.Join(r.dir, entry.File)
	tpl, err := labelformat.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to load template %s: %w", id, err)
	}
	tpl.Name = name
	if err := tpl.SaveToFile(path); err != nil {
		return fmt.Errorf("failed to store template: %w", err)
	}

	entry.Name = name
	entry.UpdatedAt = time.Now().UTC()
	return r.save()
}

// Remove deletes a template and its file
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, entry := range r.data {
		if entry.ID == id {
			delete(r.data, key)
			os.Remove(filepath.Join(r.dir, entry.File))
			r.save()
			return true
		}
	}
	return false
}

// GetAll returns copies of every entry, oldest first
func (r *Registry) GetAll() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Entry, 0, len(r.data))
	for _, v := range r.data {
		entryCopy := *v
		result = append(result, &entryCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (r *Registry) find(id string) *Entry {
	for _, entry := range r.data {
		if entry.ID == id {
			return entry
		}
	}
	return nil
}

func (r *Registry) load() error {
	data, err := os.ReadFile(filepath.Join(r.dir, indexFile))
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &r.data)
}

func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(r.dir, indexFile), data, 0644)
}

// identityKey hashes the template content; the name does not count
func identityKey(tpl *labelformat.Template) (string, error) {
	c := tpl.Clone()
	c.Name = ""
	c.Description = ""
	data, err := c.ToJSON()
	if err != nil {
		return "", fmt.Errorf("failed to serialize template: %w", err)
	}
	return fmt.Sprintf("md5:%x", md5.Sum(data)), nil
}
