package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"memoire/internal/models"
)

// PilierRepository persists consolidated long-lived facts.
type PilierRepository struct {
	db *sql.DB
}

// NewPilierRepository builds a PilierRepository over an open Store.
func NewPilierRepository(s *Store) *PilierRepository {
	return &PilierRepository{db: s.db}
}

// Create inserts a pilier, clamping its importance before persisting.
func (r *PilierRepository) Create(ctx context.Context, p *models.Pilier) error {
	p.ClampImportance()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO piliers (category, importance, fact, source_id, created_at, updated_at)
		VALUES (?,?,?,?,?,?)`,
		string(p.Category), p.Importance, p.Fact, p.SourceID,
		p.CreatedAt.Format(time.RFC3339Nano), p.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("piliers: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("piliers: last insert id: %w", err)
	}
	p.ID = id
	return nil
}

// ByCategory returns every pilier of a category, most recently updated first.
func (r *PilierRepository) ByCategory(ctx context.Context, category models.PilierCategory) ([]*models.Pilier, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, importance, fact, source_id, created_at, updated_at
		FROM piliers WHERE category = ? ORDER BY updated_at DESC`, string(category))
	if err != nil {
		return nil, fmt.Errorf("piliers: by category %s: %w", category, err)
	}
	defer rows.Close()
	return scanPiliers(rows)
}

// All returns every pilier, ordered by importance descending then recency.
func (r *PilierRepository) All(ctx context.Context) ([]*models.Pilier, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, importance, fact, source_id, created_at, updated_at
		FROM piliers ORDER BY importance DESC, updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("piliers: all: %w", err)
	}
	defer rows.Close()
	return scanPiliers(rows)
}

// UpdateImportance updates a pilier's importance, clamping into {0,1,2,3}.
func (r *PilierRepository) UpdateImportance(ctx context.Context, id int64, importance int) error {
	p := models.Pilier{Importance: importance}
	p.ClampImportance()

	res, err := r.db.ExecContext(ctx, `
		UPDATE piliers SET importance = ?, updated_at = ? WHERE id = ?`,
		p.Importance, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("piliers: update importance %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("piliers: rows affected %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPiliers(rows *sql.Rows) ([]*models.Pilier, error) {
	var piliers []*models.Pilier
	for rows.Next() {
		var p models.Pilier
		var category, createdAt, updatedAt string
		var sourceID sql.NullInt64
		if err := rows.Scan(&p.ID, &category, &p.Importance, &p.Fact, &sourceID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("piliers: scan: %w", err)
		}
		p.Category = models.PilierCategory(category)
		if sourceID.Valid {
			v := sourceID.Int64
			p.SourceID = &v
		}
		var err error
		if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("piliers: parse created_at: %w", err)
		}
		if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("piliers: parse updated_at: %w", err)
		}
		piliers = append(piliers, &p)
	}
	return piliers, rows.Err()
}
