// Package store persists segments, edges, piliers and candidate entities in
// an embedded SQLite database (metadata.db), and exposes the normalize_search
// scalar function used by tag/entity-array text matching. The database
// handle is a thin wrapper around *sql.DB, with every repository method
// taking a context.Context and wrapping errors with fmt.Errorf.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the metadata.db handle shared by every repository.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS metadata (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	timestamp_epoch INTEGER NOT NULL,
	token_start INTEGER NOT NULL DEFAULT 0,
	token_end INTEGER NOT NULL DEFAULT 0,
	source_file TEXT NOT NULL DEFAULT '',
	source_nature TEXT NOT NULL DEFAULT '',
	source_format TEXT NOT NULL DEFAULT '',
	source_origine TEXT NOT NULL DEFAULT '',
	auteur TEXT NOT NULL DEFAULT '',
	emotion_valence REAL NOT NULL DEFAULT 0,
	emotion_activation REAL NOT NULL DEFAULT 0,
	tags_roget TEXT NOT NULL DEFAULT '[]',
	personnes TEXT NOT NULL DEFAULT '[]',
	projets TEXT NOT NULL DEFAULT '[]',
	sujets TEXT NOT NULL DEFAULT '[]',
	lieux TEXT NOT NULL DEFAULT '[]',
	resume_texte TEXT NOT NULL DEFAULT '',
	gr_id INTEGER,
	confidence_score REAL NOT NULL DEFAULT 0,
	statut_verite INTEGER NOT NULL DEFAULT 0,
	vecteur_trildasa TEXT NOT NULL DEFAULT '{}',
	extractor_version TEXT NOT NULL DEFAULT '',
	modele TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_metadata_timestamp_epoch ON metadata(timestamp_epoch);
CREATE INDEX IF NOT EXISTS idx_metadata_gr_id ON metadata(gr_id);
CREATE INDEX IF NOT EXISTS idx_metadata_statut_verite ON metadata(statut_verite);
CREATE INDEX IF NOT EXISTS idx_metadata_source_file ON metadata(source_file);

CREATE TABLE IF NOT EXISTS edges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id INTEGER NOT NULL REFERENCES metadata(id),
	target_id INTEGER NOT NULL REFERENCES metadata(id),
	type TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	weight REAL NOT NULL DEFAULT 1.0,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edges_source_id ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target_id ON edges(target_id);
CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(type);

CREATE TABLE IF NOT EXISTS piliers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category TEXT NOT NULL,
	importance INTEGER NOT NULL DEFAULT 0,
	fact TEXT NOT NULL,
	source_id INTEGER REFERENCES metadata(id),
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_piliers_category ON piliers(category);

CREATE TABLE IF NOT EXISTS personnes_candidats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	nom TEXT NOT NULL,
	segment_id INTEGER NOT NULL REFERENCES metadata(id),
	contexte TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS projets_candidats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	nom TEXT NOT NULL,
	segment_id INTEGER NOT NULL REFERENCES metadata(id),
	contexte TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
`

// Open opens (creating if absent) the metadata.db at path and applies the
// schema migration. path may be ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	// metadata.db is single-writer: one connection avoids SQLITE_BUSY
	// under concurrent callers instead of papering over it with
	// busy-timeout retries.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// DB exposes the raw handle to repositories in this package.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}
