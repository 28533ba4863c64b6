package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"memoire/internal/models"
)

// CandidateRepository persists proposed-but-unconfirmed named entities.
type CandidateRepository struct {
	db *sql.DB
}

// NewCandidateRepository builds a CandidateRepository over an open Store.
func NewCandidateRepository(s *Store) *CandidateRepository {
	return &CandidateRepository{db: s.db}
}

// Create inserts a candidate into the table matching its Kind.
func (r *CandidateRepository) Create(ctx context.Context, c *models.Candidate) error {
	table, err := tableForKind(c.Kind)
	if err != nil {
		return err
	}
	c.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (nom, segment_id, contexte, created_at) VALUES (?,?,?,?)`, table),
		c.Nom, c.SegmentID, c.Contexte, c.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("candidates: insert into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("candidates: last insert id: %w", err)
	}
	c.ID = id
	return nil
}

// ListByKind returns every candidate of a kind, newest first.
func (r *CandidateRepository) ListByKind(ctx context.Context, kind models.CandidateKind) ([]*models.Candidate, error) {
	table, err := tableForKind(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, nom, segment_id, contexte, created_at FROM %s ORDER BY id DESC`, table))
	if err != nil {
		return nil, fmt.Errorf("candidates: list %s: %w", table, err)
	}
	defer rows.Close()

	var candidates []*models.Candidate
	for rows.Next() {
		var c models.Candidate
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Nom, &c.SegmentID, &c.Contexte, &createdAt); err != nil {
			return nil, fmt.Errorf("candidates: scan: %w", err)
		}
		c.Kind = kind
		if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("candidates: parse created_at: %w", err)
		}
		candidates = append(candidates, &c)
	}
	return candidates, rows.Err()
}

func tableForKind(kind models.CandidateKind) (string, error) {
	switch kind {
	case models.CandidatePersonne:
		return "personnes_candidats", nil
	case models.CandidateProjet:
		return "projets_candidats", nil
	default:
		return "", fmt.Errorf("candidates: unknown kind %q", kind)
	}
}
