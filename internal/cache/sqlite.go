package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteTier persists cache entries across restarts. It sits between
// the in-process LRU and the shared Redis tier.
type SQLiteTier struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key         TEXT PRIMARY KEY,
	value       BLOB NOT NULL,
	expires_at  INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
`

// NewSQLiteTier opens (or creates) the cache database at path.
func NewSQLiteTier(path string) (*SQLiteTier, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "open cache database")
	}

	// Single writer; serialize access at the pool level.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "apply %s", pragma)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "create cache schema")
	}
	return &SQLiteTier{db: db}, nil
}

func (s *SQLiteTier) Name() string { return "sqlite" }

func (s *SQLiteTier) Get(ctx context.Context, key string) (*Entry, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "read cache entry")
	}

	entry := &Entry{Value: value, ExpiresAt: time.Unix(expiresAt, 0)}
	if entry.Expired() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		return nil, nil
	}
	return entry, nil
}

func (s *SQLiteTier) Set(ctx context.Context, key string, entry *Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, expires_at, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   expires_at = excluded.expires_at,
		   created_at = excluded.created_at`,
		key, entry.Value, entry.ExpiresAt.Unix(), time.Now().Unix())
	if err != nil {
		return eris.Wrap(err, "write cache entry")
	}
	return nil
}

func (s *SQLiteTier) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	if err != nil {
		return eris.Wrap(err, "delete cache entry")
	}
	return nil
}

func (s *SQLiteTier) DeletePattern(ctx context.Context, pattern string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE instr(key, ?) > 0`, pattern)
	if err != nil {
		return 0, eris.Wrap(err, "delete cache entries by pattern")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteTier) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	if err != nil {
		return eris.Wrap(err, "clear cache")
	}
	return nil
}

// Prune removes expired rows. Intended for the periodic cleanup task.
func (s *SQLiteTier) Prune(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, eris.Wrap(err, "prune expired cache entries")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the underlying database handle.
func (s *SQLiteTier) Close() error {
	return s.db.Close()
}
