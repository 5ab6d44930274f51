// Package redis provides a Redis-backed storage driver. Each conversation is a
// JSON value and each owner has a sorted set of conversation ids scored by
// updated_at in unix milliseconds.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/papercomputeco/grove/pkg/ident"
	"github.com/papercomputeco/grove/pkg/storage"
)

// DefaultPrefix is prepended to every key when Config.Prefix is empty.
const DefaultPrefix = "grove:"

// Config holds Redis connection configuration.
type Config struct {
	// Addr is the Redis server address (host:port).
	Addr string

	// Password is the Redis password (optional).
	Password string

	// DB is the Redis database number.
	DB int

	// Prefix is the key prefix for all keys (default: "grove:").
	Prefix string
}

// Driver implements storage.Driver using Redis.
type Driver struct {
	client *redis.Client
	prefix string
}

// NewDriver connects to Redis and verifies the connection.
func NewDriver(ctx context.Context, cfg Config) (*Driver, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewDriverFromClient(client, cfg.Prefix), nil
}

// NewDriverFromClient wraps an existing client. Tests use it with miniredis.
func NewDriverFromClient(client *redis.Client, prefix string) *Driver {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Driver{client: client, prefix: prefix}
}

func (d *Driver) convKey(id string) string {
	return d.prefix + "conv:" + id
}

func (d *Driver) ownerKey(ownerID string) string {
	return d.prefix + "owner:" + ownerID
}

// Insert stores doc under a generated id and indexes it for its owner.
func (d *Driver) Insert(ctx context.Context, ownerID string, doc storage.Document) (string, error) {
	doc.ID = ident.NewEventID()
	doc.UserID = ownerID

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal conversation: %w", err)
	}

	_, err = d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, d.convKey(doc.ID), data, 0)
		pipe.ZAdd(ctx, d.ownerKey(ownerID), redis.Z{
			Score:  float64(doc.UpdatedAt.UnixMilli()),
			Member: doc.ID,
		})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}

	return doc.ID, nil
}

// Update applies patch under WATCH so concurrent writers to the same
// conversation cannot interleave.
func (d *Driver) Update(ctx context.Context, id string, patch storage.Patch) error {
	key := d.convKey(id)

	txf := func(tx *redis.Tx) error {
		doc, err := d.load(ctx, tx, id)
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

		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal conversation: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, d.ownerKey(doc.UserID), redis.Z{
				Score:  float64(doc.UpdatedAt.UnixMilli()),
				Member: id,
			})
			return nil
		})
		return err
	}

	const maxRetries = 3
	for range maxRetries {
		err := d.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			var nf storage.NotFoundError
			if errors.As(err, &nf) {
				return nf
			}
			return fmt.Errorf("update conversation: %w", err)
		}
		return nil
	}

	return fmt.Errorf("update conversation %s: too much contention", id)
}

// Get retrieves a conversation by id.
func (d *Driver) Get(ctx context.Context, id string) (*storage.Document, error) {
	return d.load(ctx, d.client, id)
}

func (d *Driver) load(ctx context.Context, c redis.Cmdable, id string) (*storage.Document, error) {
	data, err := c.Get(ctx, d.convKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	var doc storage.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return &doc, nil
}

// List returns the summaries owned by ownerID, most recently updated first.
func (d *Driver) List(ctx context.Context, ownerID string) ([]storage.Summary, error) {
	ids, err := d.client.ZRevRange(ctx, d.ownerKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = d.convKey(id)
	}

	values, err := d.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}

	out := make([]storage.Summary, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry without a document
			continue
		}

		var doc storage.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("unmarshal conversation %s: %w", ids[i], err)
		}
		out = append(out, doc.Summary())
	}

	return out, nil
}

// Close closes the underlying client.
func (d *Driver) Close() error {
	return d.client.Close()
}
