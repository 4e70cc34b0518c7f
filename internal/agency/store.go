package agency

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Store persists oracle-learned heading mappings so repeat analyses
// skip the model call. Usage counts feed the stats endpoint.
type Store struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS learned_mappings (
	heading     TEXT PRIMARY KEY,
	agencies    TEXT NOT NULL,
	confidence  REAL NOT NULL,
	uses        INTEGER NOT NULL DEFAULT 0,
	updated_at  INTEGER NOT NULL
);
`

// NewStore opens (or creates) the learned-mapping database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "open mapping database")
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "apply %s", pragma)
		}
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "create mapping schema")
	}
	return &Store{db: db}, nil
}

// Lookup returns a learned mapping for a heading, or ok=false.
func (s *Store) Lookup(ctx context.Context, heading string) (agencies []string, confidence float64, ok bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx,
		`SELECT agencies, confidence FROM learned_mappings WHERE heading = ?`, heading,
	).Scan(&raw, &confidence)
	if err == sql.ErrNoRows {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, eris.Wrap(err, "read learned mapping")
	}
	if err := json.Unmarshal([]byte(raw), &agencies); err != nil {
		return nil, 0, false, eris.Wrap(err, "decode learned mapping")
	}
	return agencies, confidence, true, nil
}

// Save stores or refreshes a learned mapping.
func (s *Store) Save(ctx context.Context, heading string, agencies []string, confidence float64) error {
	raw, err := json.Marshal(agencies)
	if err != nil {
		return eris.Wrap(err, "encode learned mapping")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO learned_mappings (heading, agencies, confidence, uses, updated_at)
		 VALUES (?, ?, ?, 0, ?)
		 ON CONFLICT(heading) DO UPDATE SET
		   agencies = excluded.agencies,
		   confidence = excluded.confidence,
		   updated_at = excluded.updated_at`,
		heading, string(raw), confidence, time.Now().Unix())
	if err != nil {
		return eris.Wrap(err, "save learned mapping")
	}
	return nil
}

// RecordUse bumps the usage counter for a heading.
func (s *Store) RecordUse(ctx context.Context, heading string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE learned_mappings SET uses = uses + 1 WHERE heading = ?`, heading)
	if err != nil {
		return eris.Wrap(err, "record mapping use")
	}
	return nil
}

// UsageRow is one heading's learned mapping with its hit count.
type UsageRow struct {
	Heading    string   `json:"heading"`
	Agencies   []string `json:"agencies"`
	Confidence float64  `json:"confidence"`
	Uses       int64    `json:"uses"`
}

// TopUsed returns the most-used learned mappings for the stats
// endpoint.
func (s *Store) TopUsed(ctx context.Context, limit int) ([]UsageRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT heading, agencies, confidence, uses FROM learned_mappings
		 ORDER BY uses DESC, heading LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "query mapping usage")
	}
	defer rows.Close()

	var out []UsageRow
	for rows.Next() {
		var row UsageRow
		var raw string
		if err := rows.Scan(&row.Heading, &raw, &row.Confidence, &row.Uses); err != nil {
			return nil, eris.Wrap(err, "scan mapping usage")
		}
		if err := json.Unmarshal([]byte(raw), &row.Agencies); err != nil {
			return nil, eris.Wrap(err, "decode mapping usage")
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
