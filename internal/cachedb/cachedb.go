// Package cachedb implements the content-hash keyed transpile cache
// described in SPEC_FULL.md: a small SQLite database, rooted next to the
// game's data directory, that lets `--watch` reloads skip re-transpiling
// TypeScript files whose source has not changed since the last run.
package cachedb

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	// Pure-Go SQLite driver for database/sql.
	_ "github.com/glebarez/sqlite"
)

// Cache persists transpiled JS output keyed by the SHA-256 of its
// TypeScript source plus the source's path (two files with identical
// contents but different extensions/loaders must not collide).
type Cache struct {
	db *sql.DB
}

// Open opens (or creates) the transpile cache database at
// {dataDir}/transpile-cache.sqlite3, matching the teacher's D1Bridge
// convention of rooting a per-purpose SQLite file under a data directory.
func Open(dataDir string) (*Cache, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("cachedb: creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "transpile-cache.sqlite3")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cachedb: opening %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cachedb: enabling WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cachedb: creating schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// OpenMemory opens an in-memory cache, for tests and for `compile` runs
// that have no need to persist the cache across processes.
func OpenMemory() (*Cache, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("cachedb: opening in-memory database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cachedb: creating schema: %w", err)
	}
	return &Cache{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS transpile_cache (
	path TEXT NOT NULL,
	source_hash TEXT NOT NULL,
	output TEXT NOT NULL,
	PRIMARY KEY (path, source_hash)
);
`

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// HashSource returns the cache key for a file's TypeScript source.
func HashSource(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached transpile output for path/sourceHash, if any.
func (c *Cache) Lookup(path, sourceHash string) (output string, ok bool, err error) {
	row := c.db.QueryRow(
		"SELECT output FROM transpile_cache WHERE path = ? AND source_hash = ?",
		path, sourceHash,
	)
	if err := row.Scan(&output); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("cachedb: lookup %s: %w", path, err)
	}
	return output, true, nil
}

// Store records the transpile output for path/sourceHash, replacing any
// prior entry for the same path under a different source hash so the
// table never grows unbounded as a watched file is edited repeatedly.
func (c *Cache) Store(path, sourceHash, output string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("cachedb: store %s: %w", path, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM transpile_cache WHERE path = ? AND source_hash != ?", path, sourceHash); err != nil {
		return fmt.Errorf("cachedb: store %s: pruning stale entries: %w", path, err)
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO transpile_cache (path, source_hash, output) VALUES (?, ?, ?)",
		path, sourceHash, output,
	); err != nil {
		return fmt.Errorf("cachedb: store %s: %w", path, err)
	}
	return tx.Commit()
}
