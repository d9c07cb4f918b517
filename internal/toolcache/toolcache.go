// Package toolcache is a SQLite-backed key/value cache with expiry,
// used by the slower tools: search_file_content memoizes its in-process
// recursive scans and read_pdf_file caches extracted page text. The PDF
// key includes the file's path, mtime and size, so a changed PDF misses;
// the search key is only root, pattern and include, so a cached scan is
// reused until its entry expires even if files under root changed.
package toolcache

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // register sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS tool_cache (
	key      TEXT PRIMARY KEY,
	value    TEXT NOT NULL,
	created  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tool_cache_created ON tool_cache(created);
`

// Cache is a SQLite-backed KV cache. All methods are safe on a nil
// receiver (they behave as a permanent miss), so callers can treat the
// cache as strictly optional.
type Cache struct {
	mu  sync.Mutex
	db  *sql.DB
	ttl time.Duration
}

// Open creates or opens the cache database at dbPath. ttl controls how
// long entries remain fresh.
func Open(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	c := &Cache{db: db, ttl: ttl}
	c.purgeStale()
	return c, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the cached value for key, or "" and false on miss/stale.
func (c *Cache) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-c.ttl).Unix()
	var value string
	err := c.db.QueryRow(
		"SELECT value FROM tool_cache WHERE key = ? AND created > ?",
		key, cutoff,
	).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

// Set stores value under key, replacing any previous entry.
func (c *Cache) Set(key, value string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO tool_cache (key, value, created) VALUES (?, ?, ?)",
		key, value, time.Now().Unix(),
	)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to cache tool result")
	}
}

// purgeStale removes entries older than the TTL.
func (c *Cache) purgeStale() {
	cutoff := time.Now().Add(-c.ttl).Unix()
	if _, err := c.db.Exec("DELETE FROM tool_cache WHERE created <= ?", cutoff); err != nil {
		log.Warn().Err(err).Msg("failed to purge stale cache entries")
	}
}
