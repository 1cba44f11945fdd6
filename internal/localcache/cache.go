package localcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"example.com/bazaar-store/internal/sqliteutil"
)

// Cache is the device-local key/value store. Every named data slice lives in
// one row holding its JSON encoding.
type Cache struct {
	db     *sql.DB
	logger *slog.Logger

	// mu keeps writes strictly ordered by call sequence.
	mu sync.Mutex
}

// New wraps an open sqlite handle. Call Init before use.
func New(db *sql.DB, logger *slog.Logger) *Cache {
	return &Cache{db: db, logger: logger}
}

// Init creates the backing table.
func (c *Cache) Init(ctx context.Context) error {
	return sqliteutil.Migrate(ctx, c.db,
		`CREATE TABLE IF NOT EXISTS local_kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	)
}

// ReadRaw returns the stored payload for key. Missing keys and read failures
// both report false.
func (c *Cache) ReadRaw(ctx context.Context, key string) (json.RawMessage, bool) {
	var value string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM local_kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Warn("local cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return json.RawMessage(value), true
}

// Read decodes the payload stored under key into dst. It reports false, and
// leaves dst alone, when the key is absent or the payload is malformed.
func (c *Cache) Read(ctx context.Context, key string, dst any) bool {
	raw, ok := c.ReadRaw(ctx, key)
	if !ok {
		return false
	}
	if !json.Valid(raw) {
		c.logger.Warn("local cache payload malformed", "key", key)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("local cache payload does not decode", "key", key, "error", err)
		return false
	}
	return true
}

// ReadOr returns the value stored under key, or def when it is absent or corrupt.
func ReadOr[T any](ctx context.Context, c *Cache, key string, def T) T {
	var v T
	if !c.Read(ctx, key, &v) {
		return def
	}
	return v
}

// Write encodes value as JSON and stores it under key.
func (c *Cache) Write(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.WriteRaw(ctx, key, payload)
}

// WriteRaw stores an already encoded JSON payload under key.
func (c *Cache) WriteRaw(ctx context.Context, key string, payload json.RawMessage) error {
	if !json.Valid(payload) {
		return fmt.Errorf("write %s: payload is not valid json", key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO local_kv(key, value, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete removes a single key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.ExecContext(ctx, `DELETE FROM local_kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Clear wipes every key.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.ExecContext(ctx, `DELETE FROM local_kv`); err != nil {
		return fmt.Errorf("clear local cache: %w", err)
	}
	return nil
}

// Keys lists the stored keys in lexical order.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key FROM local_kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter keys: %w", err)
	}
	return keys, nil
}
