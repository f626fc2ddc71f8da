package census

import "fmt"

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "collections: one row per collect pass",
		SQL: `
CREATE TABLE collections (
    id              INTEGER PRIMARY KEY,
    seq             INTEGER NOT NULL,
    at              INTEGER NOT NULL,
    duration_ns     INTEGER NOT NULL,
    swept           INTEGER NOT NULL DEFAULT 0,
    young_to_middle INTEGER NOT NULL DEFAULT 0,
    middle_to_old   INTEGER NOT NULL DEFAULT 0,
    young           INTEGER NOT NULL DEFAULT 0,
    middle          INTEGER NOT NULL DEFAULT 0,
    old             INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_collections_seq ON collections(seq);
`,
	},
}

func (s *Store) migrate() error {
	if _, err := s.Exec(`
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    description TEXT NOT NULL,
    applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
)`); err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	current, err := s.SchemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := s.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return v, nil
}
