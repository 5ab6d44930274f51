// Package firestore provides a Google Cloud Firestore storage driver. Each
// conversation is one document in a collection; tree_data is stored as a native
// map so the console shows the tree as written.
package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/tree"
)

// DefaultCollection is used when Config.Collection is empty.
const DefaultCollection = "conversations"

// Config contains configuration for the Firestore driver.
type Config struct {
	// ProjectID is the GCP project (required).
	ProjectID string

	// Collection holds the conversation documents.
	Collection string

	// CredentialsFile is an optional service account key. Application Default
	// Credentials are used otherwise.
	CredentialsFile string
}

// Driver implements storage.Driver using Firestore.
type Driver struct {
	client *firestore.Client
	coll   *firestore.CollectionRef
}

// record is the stored document shape.
type record struct {
	UserID    string         `firestore:"user_id"`
	Title     string         `firestore:"title"`
	UpdatedAt time.Time      `firestore:"updated_at"`
	TreeData  map[string]any `firestore:"tree_data"`
}

// NewDriver creates a Firestore client for cfg.
func NewDriver(ctx context.Context, cfg Config) (*Driver, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("project ID is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &Driver{
		client: client,
		coll:   client.Collection(cfg.Collection),
	}, nil
}

// Insert stores doc under a Firestore generated id.
func (d *Driver) Insert(ctx context.Context, ownerID string, doc storage.Document) (string, error) {
	data, err := toMap(doc.TreeData)
	if err != nil {
		return "", err
	}

	ref, _, err := d.coll.Add(ctx, record{
		UserID:    ownerID,
		Title:     doc.Title,
		UpdatedAt: doc.UpdatedAt,
		TreeData:  data,
	})
	if err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}

	return ref.ID, nil
}

// Update applies patch to the conversation id.
func (d *Driver) Update(ctx context.Context, id string, patch storage.Patch) error {
	updates := []firestore.Update{{Path: "updated_at", Value: patch.UpdatedAt}}

	if patch.Title != nil {
		updates = append(updates, firestore.Update{Path: "title", Value: *patch.Title})
	}
	if patch.TreeData != nil {
		data, err := toMap(*patch.TreeData)
		if err != nil {
			return err
		}
		updates = append(updates, firestore.Update{Path: "tree_data", Value: data})
	}

	if _, err := d.coll.Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return storage.NotFoundError{ID: id}
		}
		return fmt.Errorf("update conversation: %w", err)
	}

	return nil
}

// Get retrieves a conversation by id.
func (d *Driver) Get(ctx context.Context, id string) (*storage.Document, error) {
	snap, err := d.coll.Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, storage.NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	var rec record
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}

	data, err := fromMap(rec.TreeData)
	if err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}

	return &storage.Document{
		ID:        snap.Ref.ID,
		UserID:    rec.UserID,
		Title:     rec.Title,
		UpdatedAt: rec.UpdatedAt,
		TreeData:  data,
	}, nil
}

// List returns the summaries owned by ownerID, most recently updated first.
// The query needs a composite index on (user_id, updated_at desc).
func (d *Driver) List(ctx context.Context, ownerID string) ([]storage.Summary, error) {
	iter := d.coll.
		Where("user_id", "==", ownerID).
		OrderBy("updated_at", firestore.Desc).
		Select("title", "updated_at").
		Documents(ctx)
	defer iter.Stop()

	var out []storage.Summary
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list conversations: %w", err)
		}

		var rec record
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode conversation %s: %w", snap.Ref.ID, err)
		}
		out = append(out, storage.Summary{
			ID:        snap.Ref.ID,
			Title:     rec.Title,
			UpdatedAt: rec.UpdatedAt,
		})
	}

	return out, nil
}

// Close closes the Firestore client.
func (d *Driver) Close() error {
	return d.client.Close()
}

// toMap converts a tree document into the generic map form Firestore stores.
func toMap(doc tree.Document) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal tree: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("convert tree: %w", err)
	}
	return out, nil
}

func fromMap(m map[string]any) (tree.Document, error) {
	var doc tree.Document

	raw, err := json.Marshal(m)
	if err != nil {
		return doc, fmt.Errorf("marshal tree: %w", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("unmarshal tree: %w", err)
	}
	return doc, nil
}
