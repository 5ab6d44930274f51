// Package storage defines the remote conversation store: a keyed document store
// holding one serialized tree per conversation, owned by a user.
package storage

import (
	"context"
	"time"

	"github.com/papercomputeco/grove/pkg/tree"
)

// Document is the persisted form of one conversation.
type Document struct {
	// ID is assigned by the driver on Insert.
	ID string `json:"id"`

	UserID    string        `json:"user_id"`
	Title     string        `json:"title"`
	UpdatedAt time.Time     `json:"updated_at"`
	TreeData  tree.Document `json:"tree_data"`
}

// Summary is the directory entry for a conversation.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary returns the directory entry for d.
func (d *Document) Summary() Summary {
	return Summary{ID: d.ID, Title: d.Title, UpdatedAt: d.UpdatedAt}
}

// Patch is a partial update. Nil fields are left untouched; UpdatedAt is always
// written.
type Patch struct {
	Title     *string
	TreeData  *tree.Document
	UpdatedAt time.Time
}

// Driver defines the interface for persisting and retrieving conversations in a
// storage backend. Drivers guarantee per-document atomicity only.
type Driver interface {
	// Insert stores doc under ownerID and returns the generated conversation id.
	Insert(ctx context.Context, ownerID string, doc Document) (string, error)

	// Update applies patch to the conversation id. Returns NotFoundError when
	// the conversation does not exist.
	Update(ctx context.Context, id string, patch Patch) error

	// Get retrieves a conversation by id.
	Get(ctx context.Context, id string) (*Document, error)

	// List returns the summaries owned by ownerID, most recently updated first.
	List(ctx context.Context, ownerID string) ([]Summary, error)

	// Close closes the store and releases any resources.
	Close() error
}
