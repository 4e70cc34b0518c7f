package precedent

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/lawgenie/compliance-cli/internal/model"
)

// Corpus is the precedent-case source. An empty result is a policy
// answer (NO_PRECEDENTS), never an error.
type Corpus interface {
	SearchByCode(ctx context.Context, hsCode string) ([]model.PrecedentCase, error)
	SearchSimilar(ctx context.Context, text string) ([]model.PrecedentCase, error)
	Count(ctx context.Context) (int, error)
}

// Similarity search bounds: cases scoring at or below the floor are
// noise, and past the cap they stop adding signal.
const (
	maxSimilarCases = 10
	similarityFloor = 0.1
)

// SQLiteCorpus stores decided cases locally. Cases are imported from
// JSON lines exports.
type SQLiteCorpus struct {
	db *sql.DB
}

const corpusSchema = `
CREATE TABLE IF NOT EXISTS precedent_cases (
	id          TEXT PRIMARY KEY,
	hs_code     TEXT NOT NULL,
	heading     TEXT NOT NULL,
	text        TEXT NOT NULL,
	source      TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	imported_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_precedent_heading ON precedent_cases(heading);
`

// NewSQLiteCorpus opens (or creates) the corpus database at path.
func NewSQLiteCorpus(path string) (*SQLiteCorpus, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "open precedent database")
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
	if _, err := db.Exec(corpusSchema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "create precedent schema")
	}
	return &SQLiteCorpus{db: db}, nil
}

// SearchByCode returns cases sharing the request's 4-digit heading.
func (c *SQLiteCorpus) SearchByCode(ctx context.Context, hsCode string) ([]model.PrecedentCase, error) {
	heading := model.AnalysisRequest{HSCode: hsCode}.HeadingPrefix()
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, hs_code, text, source, outcome FROM precedent_cases
		 WHERE heading = ? ORDER BY id`, heading)
	if err != nil {
		return nil, eris.Wrap(err, "query precedent cases")
	}
	defer rows.Close()

	var cases []model.PrecedentCase
	for rows.Next() {
		var pc model.PrecedentCase
		if err := rows.Scan(&pc.ID, &pc.HSCode, &pc.Text, &pc.Source, &pc.Outcome); err != nil {
			return nil, eris.Wrap(err, "scan precedent case")
		}
		cases = append(cases, pc)
	}
	return cases, rows.Err()
}

// SearchSimilar ranks the whole corpus by lexical overlap with text
// and returns the closest cases. It is the fallback when no case
// shares the request's heading.
func (c *SQLiteCorpus) SearchSimilar(ctx context.Context, text string) ([]model.PrecedentCase, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, hs_code, text, source, outcome FROM precedent_cases ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "scan precedent corpus")
	}
	defer rows.Close()

	sim := JaccardWords{}
	type scored struct {
		pc    model.PrecedentCase
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var pc model.PrecedentCase
		if err := rows.Scan(&pc.ID, &pc.HSCode, &pc.Text, &pc.Source, &pc.Outcome); err != nil {
			return nil, eris.Wrap(err, "scan precedent case")
		}
		if s := sim.Score(text, pc.Text); s > similarityFloor {
			candidates = append(candidates, scored{pc: pc, score: s})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > maxSimilarCases {
		candidates = candidates[:maxSimilarCases]
	}
	out := make([]model.PrecedentCase, len(candidates))
	for i, c := range candidates {
		out[i] = c.pc
	}
	return out, nil
}

// Count returns the corpus size.
func (c *SQLiteCorpus) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM precedent_cases`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "count precedent cases")
	}
	return n, nil
}

// Add upserts one case.
func (c *SQLiteCorpus) Add(ctx context.Context, pc model.PrecedentCase) error {
	heading := model.AnalysisRequest{HSCode: pc.HSCode}.HeadingPrefix()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO precedent_cases (id, hs_code, heading, text, source, outcome, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   hs_code = excluded.hs_code,
		   heading = excluded.heading,
		   text = excluded.text,
		   source = excluded.source,
		   outcome = excluded.outcome,
		   imported_at = excluded.imported_at`,
		pc.ID, pc.HSCode, heading, pc.Text, pc.Source, string(pc.Outcome), time.Now().Unix())
	if err != nil {
		return eris.Wrapf(err, "add precedent case %s", pc.ID)
	}
	return nil
}

// Import reads JSON lines of PrecedentCase from r and upserts them.
// Returns how many cases were imported.
func (c *SQLiteCorpus) Import(ctx context.Context, r io.Reader) (int, error) {
	dec := json.NewDecoder(r)
	imported := 0
	for {
		var pc model.PrecedentCase
		if err := dec.Decode(&pc); err == io.EOF {
			break
		} else if err != nil {
			return imported, eris.Wrap(err, "decode precedent case")
		}
		if pc.ID == "" || pc.HSCode == "" {
			return imported, eris.Errorf("precedent case missing id or hs_code (after %d imported)", imported)
		}
		if err := c.Add(ctx, pc); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

// Close closes the underlying database handle.
func (c *SQLiteCorpus) Close() error {
	return c.db.Close()
}
