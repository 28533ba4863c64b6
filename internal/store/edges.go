package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"memoire/internal/models"
)

// EdgeRepository persists directed relations between segments.
type EdgeRepository struct {
	db *sql.DB
}

// NewEdgeRepository builds an EdgeRepository over an open Store.
func NewEdgeRepository(s *Store) *EdgeRepository {
	return &EdgeRepository{db: s.db}
}

// Create inserts an edge, assigning its ID and CreatedAt.
func (r *EdgeRepository) Create(ctx context.Context, e *models.Edge) error {
	if e.Weight == 0 {
		e.Weight = 1.0
	}
	e.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO edges (source_id, target_id, type, metadata, weight, created_at)
		VALUES (?,?,?,?,?,?)`,
		e.SourceID, e.TargetID, string(e.Type), e.Metadata, e.Weight, e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("edges: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("edges: last insert id: %w", err)
	}
	e.ID = id
	return nil
}

// ByTargetID returns every edge pointing at a segment, newest first. Used by
// the Coherence Agent to walk a segment's correction/evolution history.
func (r *EdgeRepository) ByTargetID(ctx context.Context, targetID int64) ([]*models.Edge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, type, metadata, weight, created_at
		FROM edges WHERE target_id = ? ORDER BY id DESC`, targetID)
	if err != nil {
		return nil, fmt.Errorf("edges: by target %d: %w", targetID, err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// BySourceID returns every edge originating from a segment, newest first.
func (r *EdgeRepository) BySourceID(ctx context.Context, sourceID int64) ([]*models.Edge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, type, metadata, weight, created_at
		FROM edges WHERE source_id = ? ORDER BY id DESC`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("edges: by source %d: %w", sourceID, err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// ByType returns edges of a given type involving either endpoint.
func (r *EdgeRepository) ByType(ctx context.Context, typ models.EdgeType, segmentID int64) ([]*models.Edge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, type, metadata, weight, created_at
		FROM edges WHERE type = ? AND (source_id = ? OR target_id = ?) ORDER BY id DESC`,
		string(typ), segmentID, segmentID)
	if err != nil {
		return nil, fmt.Errorf("edges: by type %s: %w", typ, err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

func scanEdges(rows *sql.Rows) ([]*models.Edge, error) {
	var edges []*models.Edge
	for rows.Next() {
		var e models.Edge
		var typ, createdAt string
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &typ, &e.Metadata, &e.Weight, &createdAt); err != nil {
			return nil, fmt.Errorf("edges: scan: %w", err)
		}
		e.Type = models.EdgeType(typ)
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("edges: parse created_at: %w", err)
		}
		e.CreatedAt = ts
		edges = append(edges, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if edges == nil {
		return nil, nil
	}
	return edges, nil
}
