// Package census keeps the history of collection passes in SQLite so
// operators can see how generations evolve over time.
package census

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tiergc/domain/registry"
)

// Store wraps the census database.
type Store struct {
	*sql.DB
	Path string
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create census dir: %w", err)
	}
	return open(path)
}

// OpenMemory opens a private in-memory database for tests.
func OpenMemory() (*Store, error) {
	return open(":memory:")
}

func open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: every :memory: connection is its own database,
	// and the writer is single anyway
	db.SetMaxOpenConns(1)

	s := &Store{DB: db, Path: path}
	if err := s.configurePragmas(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

// Collection is one recorded Collect pass.
type Collection struct {
	ID            int64
	Seq           uint64
	At            time.Time
	Duration      time.Duration
	Swept         int
	YoungToMiddle int
	MiddleToOld   int
	Young         int
	Middle        int
	Old           int
}

// Record stores the stats of one pass.
func (s *Store) Record(seq uint64, st registry.CollectStats) (*Collection, error) {
	c := &Collection{
		Seq:           seq,
		At:            time.Now(),
		Duration:      st.Duration,
		Swept:         st.Swept,
		YoungToMiddle: st.YoungToMiddle,
		MiddleToOld:   st.MiddleToOld,
		Young:         st.Sizes[registry.Young],
		Middle:        st.Sizes[registry.Middle],
		Old:           st.Sizes[registry.Old],
	}
	res, err := s.Exec(`
INSERT INTO collections (seq, at, duration_ns, swept, young_to_middle, middle_to_old, young, middle, old)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(c.Seq), c.At.UnixNano(), int64(c.Duration),
		c.Swept, c.YoungToMiddle, c.MiddleToOld, c.Young, c.Middle, c.Old,
	)
	if err != nil {
		return nil, fmt.Errorf("insert collection: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	return c, nil
}

// Recent returns up to limit passes, newest first.
func (s *Store) Recent(limit int) ([]Collection, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.Query(`
SELECT id, seq, at, duration_ns, swept, young_to_middle, middle_to_old, young, middle, old
FROM collections ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		var c Collection
		var seq, at, dur int64
		if err := rows.Scan(&c.ID, &seq, &at, &dur, &c.Swept, &c.YoungToMiddle, &c.MiddleToOld, &c.Young, &c.Middle, &c.Old); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		c.Seq = uint64(seq)
		c.At = time.Unix(0, at)
		c.Duration = time.Duration(dur)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Totals aggregates over every recorded pass.
type Totals struct {
	Passes   int
	Swept    int
	Promoted int
}

func (s *Store) Totals() (Totals, error) {
	var t Totals
	err := s.QueryRow(`
SELECT COUNT(*), COALESCE(SUM(swept), 0), COALESCE(SUM(young_to_middle + middle_to_old), 0)
FROM collections`).Scan(&t.Passes, &t.Swept, &t.Promoted)
	if err != nil {
		return Totals{}, fmt.Errorf("totals: %w", err)
	}
	return t, nil
}
