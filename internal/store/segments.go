package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"memoire/internal/models"
)

// ErrNotFound is returned by repository lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// SegmentRepository persists and queries metadata rows.
type SegmentRepository struct {
	db *sql.DB
}

// NewSegmentRepository builds a SegmentRepository over an open Store.
func NewSegmentRepository(s *Store) *SegmentRepository {
	return &SegmentRepository{db: s.db}
}

// Create inserts a segment, assigning its ID and CreatedAt.
func (r *SegmentRepository) Create(ctx context.Context, seg *models.Segment) error {
	tags, err := json.Marshal(seg.TagsRoget)
	if err != nil {
		return fmt.Errorf("segments: marshal tags_roget: %w", err)
	}
	personnes, err := json.Marshal(seg.Personnes)
	if err != nil {
		return fmt.Errorf("segments: marshal personnes: %w", err)
	}
	projets, err := json.Marshal(seg.Projets)
	if err != nil {
		return fmt.Errorf("segments: marshal projets: %w", err)
	}
	sujets, err := json.Marshal(seg.Sujets)
	if err != nil {
		return fmt.Errorf("segments: marshal sujets: %w", err)
	}
	lieux, err := json.Marshal(seg.Lieux)
	if err != nil {
		return fmt.Errorf("segments: marshal lieux: %w", err)
	}
	vecteur, err := json.Marshal(seg.Vecteur)
	if err != nil {
		return fmt.Errorf("segments: marshal vecteur_trildasa: %w", err)
	}

	now := time.Now().UTC()
	if seg.Timestamp.IsZero() {
		seg.Timestamp = now
	}
	seg.TimestampEpoch = seg.Timestamp.Unix()
	seg.CreatedAt = now

	const q = `
		INSERT INTO metadata (
			timestamp, timestamp_epoch, token_start, token_end,
			source_file, source_nature, source_format, source_origine, auteur,
			emotion_valence, emotion_activation, tags_roget,
			personnes, projets, sujets, lieux, resume_texte,
			gr_id, confidence_score, statut_verite, vecteur_trildasa,
			extractor_version, modele, created_at
		) VALUES (?,?,?,?, ?,?,?,?,?, ?,?,?, ?,?,?,?,?, ?,?,?,?, ?,?,?)
	`
	res, err := r.db.ExecContext(ctx, q,
		seg.Timestamp.Format(time.RFC3339Nano), seg.TimestampEpoch, seg.TokenStart, seg.TokenEnd,
		seg.SourceFile, seg.SourceNature, seg.SourceFormat, seg.SourceOrigine, string(seg.Auteur),
		seg.EmotionValence, seg.EmotionActivation, string(tags),
		string(personnes), string(projets), string(sujets), string(lieux), seg.ResumeTexte,
		seg.GrID, seg.ConfidenceScore, int(seg.StatutVerite), string(vecteur),
		seg.ExtractorVersion, seg.Modele, seg.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("segments: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("segments: last insert id: %w", err)
	}
	seg.ID = id
	return nil
}

// GetByID retrieves a single segment by its primary key.
func (r *SegmentRepository) GetByID(ctx context.Context, id int64) (*models.Segment, error) {
	const q = segmentSelect + ` WHERE id = ?`
	row := r.db.QueryRowContext(ctx, q, id)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("segments: get %d: %w", id, err)
	}
	return seg, nil
}

// LatestGrID returns the most recently assigned non-null gr_id, or nil if no
// segment has one yet. Used by the Indexer to continue a grouping run.
func (r *SegmentRepository) LatestGrID(ctx context.Context) (*int64, error) {
	var grID sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT gr_id FROM metadata WHERE gr_id IS NOT NULL ORDER BY id DESC LIMIT 1`,
	).Scan(&grID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("segments: latest gr_id: %w", err)
	}
	if !grID.Valid {
		return nil, nil
	}
	v := grID.Int64
	return &v, nil
}

// UpdateStatutVerite updates a single segment's truth status, the mutation
// the Coherence Agent applies after a Rectification mandate.
func (r *SegmentRepository) UpdateStatutVerite(ctx context.Context, id int64, status models.TruthStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE metadata SET statut_verite = ? WHERE id = ?`, int(status), id)
	if err != nil {
		return fmt.Errorf("segments: update statut_verite %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("segments: rows affected %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAll returns the total number of indexed segments.
func (r *SegmentRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM metadata`).Scan(&n); err != nil {
		return 0, fmt.Errorf("segments: count: %w", err)
	}
	return n, nil
}

// FindNearDuplicates is an opt-in admin query, not run automatically during
// indexing, that surfaces segments sharing the same source_file,
// token_start and token_end, the signature of a re-indexed transcript
// region.
func (r *SegmentRepository) FindNearDuplicates(ctx context.Context) ([][]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source_file, token_start, token_end, GROUP_CONCAT(id)
		FROM metadata
		WHERE source_file != ''
		GROUP BY source_file, token_start, token_end
		HAVING COUNT(*) > 1
	`)
	if err != nil {
		return nil, fmt.Errorf("segments: find near duplicates: %w", err)
	}
	defer rows.Close()

	var groups [][]int64
	for rows.Next() {
		var sourceFile string
		var tokenStart, tokenEnd int
		var idList string
		if err := rows.Scan(&sourceFile, &tokenStart, &tokenEnd, &idList); err != nil {
			return nil, fmt.Errorf("segments: scan duplicate group: %w", err)
		}
		ids, err := parseIDList(idList)
		if err != nil {
			return nil, fmt.Errorf("segments: parse duplicate group ids: %w", err)
		}
		groups = append(groups, ids)
	}
	return groups, rows.Err()
}

const segmentSelect = `
	SELECT id, timestamp, timestamp_epoch, token_start, token_end,
	       source_file, source_nature, source_format, source_origine, auteur,
	       emotion_valence, emotion_activation, tags_roget,
	       personnes, projets, sujets, lieux, resume_texte,
	       gr_id, confidence_score, statut_verite, vecteur_trildasa,
	       extractor_version, modele, created_at
	FROM metadata
`

type scanner interface {
	Scan(dest ...any) error
}

func scanSegment(row scanner) (*models.Segment, error) {
	var seg models.Segment
	var timestamp, createdAt string
	var auteur string
	var tags, personnes, projets, sujets, lieux, vecteur string
	var grID sql.NullInt64
	var statut int

	err := row.Scan(
		&seg.ID, &timestamp, &seg.TimestampEpoch, &seg.TokenStart, &seg.TokenEnd,
		&seg.SourceFile, &seg.SourceNature, &seg.SourceFormat, &seg.SourceOrigine, &auteur,
		&seg.EmotionValence, &seg.EmotionActivation, &tags,
		&personnes, &projets, &sujets, &lieux, &seg.ResumeTexte,
		&grID, &seg.ConfidenceScore, &statut, &vecteur,
		&seg.ExtractorVersion, &seg.Modele, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	seg.Auteur = models.Author(auteur)
	seg.StatutVerite = models.TruthStatus(statut)
	if grID.Valid {
		v := grID.Int64
		seg.GrID = &v
	}

	if seg.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
		return nil, fmt.Errorf("parse timestamp: %w", err)
	}
	if seg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &seg.TagsRoget); err != nil {
		return nil, fmt.Errorf("unmarshal tags_roget: %w", err)
	}
	if err := json.Unmarshal([]byte(personnes), &seg.Personnes); err != nil {
		return nil, fmt.Errorf("unmarshal personnes: %w", err)
	}
	if err := json.Unmarshal([]byte(projets), &seg.Projets); err != nil {
		return nil, fmt.Errorf("unmarshal projets: %w", err)
	}
	if err := json.Unmarshal([]byte(sujets), &seg.Sujets); err != nil {
		return nil, fmt.Errorf("unmarshal sujets: %w", err)
	}
	if err := json.Unmarshal([]byte(lieux), &seg.Lieux); err != nil {
		return nil, fmt.Errorf("unmarshal lieux: %w", err)
	}
	if err := json.Unmarshal([]byte(vecteur), &seg.Vecteur); err != nil {
		return nil, fmt.Errorf("unmarshal vecteur_trildasa: %w", err)
	}

	return &seg, nil
}

func parseIDList(csv string) ([]int64, error) {
	var ids []int64
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				var v int64
				if _, err := fmt.Sscanf(csv[start:i], "%d", &v); err != nil {
					return nil, err
				}
				ids = append(ids, v)
			}
			start = i + 1
		}
	}
	return ids, nil
}
