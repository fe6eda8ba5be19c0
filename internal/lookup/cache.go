package lookup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Cache stores upstream response bodies in a local SQLite database.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (or creates) the cache database at dir/lookup.db.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "lookup.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening lookup cache: %w", err)
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS responses (
		query_key  TEXT PRIMARY KEY,
		body       BLOB NOT NULL,
		fetched_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache table: %w", err)
	}

	return &Cache{db: db}, nil
}

// Get returns the body cached for key if it was fetched after notBefore.
func (c *Cache) Get(ctx context.Context, key string, notBefore time.Time) ([]byte, bool, error) {
	var body []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT body FROM responses WHERE query_key = ? AND fetched_at >= ?`,
		key, notBefore.Unix(),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached response: %w", err)
	}
	return body, true, nil
}

// Put records body as the latest response for key.
func (c *Cache) Put(ctx context.Context, key string, body []byte, fetchedAt time.Time) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO responses (query_key, body, fetched_at) VALUES (?, ?, ?)`,
		key, body, fetchedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing cached response: %w", err)
	}
	return nil
}

// Prune deletes entries fetched before notBefore and returns how many were removed.
func (c *Cache) Prune(ctx context.Context, notBefore time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM responses WHERE fetched_at < ?`, notBefore.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}
