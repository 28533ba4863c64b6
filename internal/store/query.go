package store

import (
	"context"
	"fmt"
	"strings"

	"memoire/internal/models"
)

// Condition is one predicate in a candidate query, rendered as a single SQL
// clause with its bound argument. The Retriever builds an AND-of-OR
// structure: each Group is OR'd internally, and Groups are AND'd together.
type Condition struct {
	// SQL is a clause using normalize_search(column) LIKE ? or a plain
	// column comparison; exactly one '?' placeholder.
	SQL string
	Arg any
}

// Group is a disjunction (OR) of Conditions.
type Group []Condition

// CandidateQuery narrows the metadata table down to a bounded candidate set
// before the Retriever's in-memory scoring pass runs over it: SQL narrows,
// Go scores.
type CandidateQuery struct {
	Groups []Group
	Limit  int
	Offset int
	// OrderBy, when set, overrides the default timestamp_epoch DESC sort;
	// callers are responsible for passing only whitelisted column names
	// (never user input directly) since it is concatenated into the SQL
	// text rather than bound as a parameter.
	OrderBy string
	Desc    bool
}

// FindCandidates runs a CandidateQuery and returns matching segments,
// unscored, newest first (timestamp_epoch DESC) unless OrderBy is set; the
// Retriever is responsible for ranking them.
func (r *SegmentRepository) FindCandidates(ctx context.Context, q CandidateQuery) ([]*models.Segment, error) {
	sqlText := segmentSelect
	var args []any

	var andClauses []string
	for _, group := range q.Groups {
		if len(group) == 0 {
			continue
		}
		var orClauses []string
		for _, cond := range group {
			orClauses = append(orClauses, cond.SQL)
			args = append(args, cond.Arg)
		}
		andClauses = append(andClauses, "("+strings.Join(orClauses, " OR ")+")")
	}
	if len(andClauses) > 0 {
		sqlText += " WHERE " + strings.Join(andClauses, " AND ")
	}
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		sqlText += fmt.Sprintf(" ORDER BY %s %s", q.OrderBy, dir)
	} else {
		sqlText += " ORDER BY timestamp_epoch DESC"
	}
	if q.Limit > 0 {
		sqlText += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		sqlText += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("segments: find candidates: %w", err)
	}
	defer rows.Close()

	var segments []*models.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("segments: scan candidate: %w", err)
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// TagProximityCondition matches segments whose tags_roget list contains the
// tag code anywhere (a substring match on the stored JSON array); broader
// proximity-based ranking happens in the Retriever's scoring pass, not in
// SQL.
func TagProximityCondition(tag string) Condition {
	return Condition{SQL: "tags_roget LIKE '%' || ? || '%'", Arg: tag}
}

// PersonneCondition matches segments mentioning a person, accent- and
// case-insensitively, via the normalize_search scalar function.
func PersonneCondition(nom string) Condition {
	return Condition{SQL: "normalize_search(personnes) LIKE '%' || normalize_search(?) || '%'", Arg: nom}
}

// ResumeKeywordCondition matches segments whose resume_texte contains a
// keyword, accent- and case-insensitively.
func ResumeKeywordCondition(keyword string) Condition {
	return Condition{SQL: "normalize_search(resume_texte) LIKE '%' || normalize_search(?) || '%'", Arg: keyword}
}

// SujetKeywordCondition matches segments whose sujets list contains a
// keyword.
func SujetKeywordCondition(keyword string) Condition {
	return Condition{SQL: "normalize_search(sujets) LIKE '%' || normalize_search(?) || '%'", Arg: keyword}
}

// ProjetKeywordCondition matches segments whose projets list contains a
// keyword.
func ProjetKeywordCondition(keyword string) Condition {
	return Condition{SQL: "normalize_search(projets) LIKE '%' || normalize_search(?) || '%'", Arg: keyword}
}

// LieuKeywordCondition matches segments whose lieux list contains a
// keyword.
func LieuKeywordCondition(keyword string) Condition {
	return Condition{SQL: "normalize_search(lieux) LIKE '%' || normalize_search(?) || '%'", Arg: keyword}
}

// DateRangeCondition matches segments at or after a cutoff epoch.
func DateRangeCondition(sinceEpoch int64) Condition {
	return Condition{SQL: "timestamp_epoch >= ?", Arg: sinceEpoch}
}
