// Package sqldriver implements storage.Driver over database/sql. The sqlite and
// postgres drivers embed it and supply their own Dialect.
package sqldriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/grove/pkg/ident"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/tree"
)

// Dialect captures the differences between SQL backends.
type Dialect struct {
	// Name is used in error messages.
	Name string

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// Schema is executed statement by statement when the driver opens.
	Schema []string
}

// Driver implements storage.Driver on a *sql.DB.
type Driver struct {
	DB      *sql.DB
	dialect Dialect
}

// New wraps db and applies the dialect's schema.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Driver, error) {
	for _, stmt := range dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create %s schema: %w", dialect.Name, err)
		}
	}

	return &Driver{DB: db, dialect: dialect}, nil
}

// Insert stores doc under a generated id.
func (d *Driver) Insert(ctx context.Context, ownerID string, doc storage.Document) (string, error) {
	treeJSON, err := json.Marshal(doc.TreeData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tree: %w", err)
	}

	id := ident.NewEventID()
	query := fmt.Sprintf(
		`INSERT INTO conversations (id, user_id, title, updated_at, tree_data) VALUES (%s, %s, %s, %s, %s)`,
		d.ph(1), d.ph(2), d.ph(3), d.ph(4), d.ph(5),
	)

	_, err = d.DB.ExecContext(ctx, query, id, ownerID, doc.Title, doc.UpdatedAt.UnixMilli(), string(treeJSON))
	if err != nil {
		return "", fmt.Errorf("failed to insert conversation: %w", err)
	}

	return id, nil
}

// Update applies patch to the conversation id.
func (d *Driver) Update(ctx context.Context, id string, patch storage.Patch) error {
	sets := []string{"updated_at = " + d.ph(1)}
	args := []any{patch.UpdatedAt.UnixMilli()}

	if patch.Title != nil {
		args = append(args, *patch.Title)
		sets = append(sets, "title = "+d.ph(len(args)))
	}
	if patch.TreeData != nil {
		treeJSON, err := json.Marshal(patch.TreeData)
		if err != nil {
			return fmt.Errorf("failed to marshal tree: %w", err)
		}
		args = append(args, string(treeJSON))
		sets = append(sets, "tree_data = "+d.ph(len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE conversations SET %s WHERE id = %s`, strings.Join(sets, ", "), d.ph(len(args)))

	res, err := d.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{ID: id}
	}

	return nil
}

// Get retrieves a conversation by id.
func (d *Driver) Get(ctx context.Context, id string) (*storage.Document, error) {
	query := fmt.Sprintf(
		`SELECT id, user_id, title, updated_at, tree_data FROM conversations WHERE id = %s`,
		d.ph(1),
	)

	var (
		doc       storage.Document
		updatedAt int64
		treeJSON  string
	)
	err := d.DB.QueryRowContext(ctx, query, id).Scan(&doc.ID, &doc.UserID, &doc.Title, &updatedAt, &treeJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	doc.UpdatedAt = time.UnixMilli(updatedAt)

	var data tree.Document
	if err := json.Unmarshal([]byte(treeJSON), &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tree: %w", err)
	}
	doc.TreeData = data

	return &doc, nil
}

// List returns the summaries owned by ownerID, most recently updated first.
func (d *Driver) List(ctx context.Context, ownerID string) ([]storage.Summary, error) {
	query := fmt.Sprintf(
		`SELECT id, title, updated_at FROM conversations WHERE user_id = %s ORDER BY updated_at DESC, id`,
		d.ph(1),
	)

	rows, err := d.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var out []storage.Summary
	for rows.Next() {
		var (
			s         storage.Summary
			updatedAt int64
		)
		if err := rows.Scan(&s.ID, &s.Title, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		s.UpdatedAt = time.UnixMilli(updatedAt)
		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}

	return out, nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.DB.Close()
}

func (d *Driver) ph(n int) string {
	return d.dialect.Placeholder(n)
}
