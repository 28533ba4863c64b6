package toolsurface

import (
	"context"
	"fmt"

	"memoire/internal/store"
)

// inspectableSegmentColumns whitelists the columns inspect_memory may
// filter or order by, since both are concatenated into SQL text rather than
// bound as parameters (store.CandidateQuery.OrderBy's own caveat).
var inspectableSegmentColumns = map[string]bool{
	"id": true, "timestamp_epoch": true, "confidence_score": true,
	"statut_verite": true, "source_nature": true, "source_file": true, "auteur": true,
}

// InspectMemoryResult is inspect_memory's success payload: a generic,
// paginated admin view over one of the three stores, read-only and
// distinct from the scored/ranked search commands.
type InspectMemoryResult struct {
	Database string `json:"database"`
	Count    int    `json:"count"`
	Rows     any    `json:"rows"`
}

// inspectMemory is the closed-enumeration "database" admin query: segments,
// edges or piliers, paginated and optionally filtered (segments only, on a
// whitelisted column set) or ordered.
func (d *Dispatcher) inspectMemory(ctx context.Context, p map[string]any) Response {
	database := paramString(p, "database", "segments")
	limit := paramInt(p, "limit", 20)
	offset := paramInt(p, "offset", 0)

	switch database {
	case "segments":
		return d.inspectSegments(ctx, p, limit, offset)
	case "edges":
		// Edges have no global listing of their own; inspecting them is
		// scoped to one segment's outgoing links via segment_id.
		rows, err := d.edges.BySourceID(ctx, int64(paramInt(p, "segment_id", 0)))
		if err != nil {
			return errorResponse(fmt.Errorf("inspect_memory: %w", err))
		}
		return successResponse(InspectMemoryResult{Database: database, Count: len(rows), Rows: rows})
	case "piliers":
		all, err := d.piliers.All(ctx)
		if err != nil {
			return errorResponse(fmt.Errorf("inspect_memory: %w", err))
		}
		page := paginate(all, offset, limit)
		return successResponse(InspectMemoryResult{Database: database, Count: len(all), Rows: page})
	default:
		return errorResponse(fmt.Errorf("inspect_memory: unknown database %q, allowed: [segments edges piliers]", database))
	}
}

func (d *Dispatcher) inspectSegments(ctx context.Context, p map[string]any, limit, offset int) Response {
	order := paramString(p, "order", "")
	desc := paramBool(p, "desc", true)
	if order != "" && !inspectableSegmentColumns[order] {
		return errorResponse(fmt.Errorf("inspect_memory: order column %q is not inspectable", order))
	}

	var groups []store.Group
	filters, _ := p["filters"].(map[string]any)
	for col, val := range filters {
		if !inspectableSegmentColumns[col] {
			return errorResponse(fmt.Errorf("inspect_memory: filter column %q is not inspectable", col))
		}
		groups = append(groups, store.Group{{SQL: col + " = ?", Arg: val}})
	}

	q := store.CandidateQuery{Groups: groups, Limit: limit, Offset: offset, OrderBy: order, Desc: desc}
	segments, err := d.segments.FindCandidates(ctx, q)
	if err != nil {
		return errorResponse(fmt.Errorf("inspect_memory: %w", err))
	}
	return successResponse(InspectMemoryResult{Database: "segments", Count: len(segments), Rows: segments})
}

func paginate[T any](rows []*T, offset, limit int) []*T {
	if offset >= len(rows) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}
