// Package directory caches the conversation summaries known for the signed-in
// identity, independent of which conversation is currently loaded.
package directory

import (
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/grove/pkg/storage"
)

// Directory is an ordered, most recent first, cache of conversation summaries.
type Directory struct {
	mu      sync.RWMutex
	entries []storage.Summary
}

// New returns an empty directory.
func New() *Directory {
	return &Directory{}
}

// Replace swaps the whole cache for entries, kept in the order given.
func (d *Directory) Replace(entries []storage.Summary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = slices.Clone(entries)
}

// Prepend inserts s at the front. An existing entry with the same id is dropped.
func (d *Directory) Prepend(s storage.Summary) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries = slices.DeleteFunc(d.entries, func(e storage.Summary) bool {
		return e.ID == s.ID
	})
	d.entries = slices.Insert(d.entries, 0, s)
}

// Touch updates the title and updatedAt of id in place. It reports whether the
// entry was found.
func (d *Directory) Touch(id, title string, updatedAt time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.index(id)
	if idx < 0 {
		return false
	}
	d.entries[idx].Title = title
	d.entries[idx].UpdatedAt = updatedAt
	return true
}

// Get returns the entry for id.
func (d *Directory) Get(id string) (storage.Summary, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	idx := d.index(id)
	if idx < 0 {
		return storage.Summary{}, false
	}
	return d.entries[idx], true
}

// Entries returns a copy of the cached summaries.
func (d *Directory) Entries() []storage.Summary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.entries)
}

// Len returns the number of cached summaries.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Clear empties the cache.
func (d *Directory) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = nil
}

func (d *Directory) index(id string) int {
	return slices.IndexFunc(d.entries, func(e storage.Summary) bool {
		return e.ID == id
	})
}
