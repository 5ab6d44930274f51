// Package inmemory provides a map-backed storage driver for tests and for
// sessions that do not need to outlive the process.
package inmemory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/papercomputeco/grove/pkg/ident"
	"github.com/papercomputeco/grove/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of conversations
	mu sync.RWMutex

	// docs holds encoded documents keyed by conversation id so callers never
	// share memory with the store.
	docs map[string][]byte
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		docs: make(map[string][]byte),
	}
}

// Insert stores doc under a fresh id.
func (d *Driver) Insert(_ context.Context, ownerID string, doc storage.Document) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := ident.NewEventID()
	doc.ID = id
	doc.UserID = ownerID

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding conversation: %w", err)
	}
	d.docs[id] = raw

	return id, nil
}

// Update applies patch to an existing conversation.
func (d *Driver) Update(_ context.Context, id string, patch storage.Patch) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, err := d.load(id)
	if err != nil {
		return err
	}

	if patch.Title != nil {
		doc.Title = *patch.Title
	}
	if patch.TreeData != nil {
		doc.TreeData = *patch.TreeData
	}
	doc.UpdatedAt = patch.UpdatedAt

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding conversation: %w", err)
	}
	d.docs[id] = raw

	return nil
}

// Get retrieves a conversation by id.
func (d *Driver) Get(_ context.Context, id string) (*storage.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.load(id)
}

// List returns the summaries owned by ownerID, most recently updated first.
func (d *Driver) List(_ context.Context, ownerID string) ([]storage.Summary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []storage.Summary
	for id := range d.docs {
		doc, err := d.load(id)
		if err != nil {
			return nil, err
		}
		if doc.UserID == ownerID {
			out = append(out, doc.Summary())
		}
	}

	slices.SortFunc(out, func(a, b storage.Summary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return out, nil
}

// Count returns the number of stored conversations.
func (d *Driver) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs)
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

// load decodes the conversation id. Callers hold mu.
func (d *Driver) load(id string) (*storage.Document, error) {
	raw, ok := d.docs[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	var doc storage.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding conversation %s: %w", id, err)
	}
	return &doc, nil
}
