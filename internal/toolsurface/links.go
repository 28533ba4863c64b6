package toolsurface

import (
	"context"
	"errors"
	"fmt"

	"memoire/internal/models"
)

// LinkedSegment is one edge reached while exploring outward from a segment.
type LinkedSegment struct {
	SegmentID int64           `json:"segment_id"`
	EdgeType  models.EdgeType `json:"edge_type"`
	Direction string          `json:"direction"` // "in" or "out"
	Depth     int             `json:"depth"`
}

// ExploreLinksResult is explore_links's success payload.
type ExploreLinksResult struct {
	SegmentID int64           `json:"segment_id"`
	Count     int             `json:"count"`
	Links     []LinkedSegment `json:"links"`
}

// exploreLinks walks the edges table outward from one segment up to depth
// hops, collecting both directions (CORRIGE_PAR/TRAJECTOIRE/GENEALOGIE/
// EVOLUE_VERS/MEME_GROUPE/TAGS_PARTAGES) unless link_types narrows the set,
// capped at max_results.
func (d *Dispatcher) exploreLinks(ctx context.Context, p map[string]any) Response {
	segmentID := int64(paramInt(p, "segment_id", 0))
	if segmentID == 0 {
		return errorResponse(errors.New("explore_links: segment_id is required"))
	}
	depth := paramInt(p, "depth", 1)
	if depth < 1 {
		depth = 1
	}
	maxResults := paramInt(p, "max_results", 20)

	wanted := map[models.EdgeType]bool{}
	for _, t := range paramStringSlice(p, "link_types") {
		wanted[models.EdgeType(t)] = true
	}

	type frontier struct {
		id    int64
		depth int
	}

	visited := map[int64]bool{segmentID: true}
	seenEdge := map[int64]bool{}
	var links []LinkedSegment
	queue := []frontier{{segmentID, 0}}

	for len(queue) > 0 && len(links) < maxResults {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= depth {
			continue
		}

		out, err := d.edges.BySourceID(ctx, cur.id)
		if err != nil {
			return errorResponse(fmt.Errorf("explore_links: %w", err))
		}
		in, err := d.edges.ByTargetID(ctx, cur.id)
		if err != nil {
			return errorResponse(fmt.Errorf("explore_links: %w", err))
		}

		for _, e := range out {
			if len(wanted) > 0 && !wanted[e.Type] {
				continue
			}
			if seenEdge[e.ID] || len(links) >= maxResults {
				continue
			}
			seenEdge[e.ID] = true
			links = append(links, LinkedSegment{SegmentID: e.TargetID, EdgeType: e.Type, Direction: "out", Depth: cur.depth + 1})
			if !visited[e.TargetID] {
				visited[e.TargetID] = true
				queue = append(queue, frontier{e.TargetID, cur.depth + 1})
			}
		}
		for _, e := range in {
			if len(wanted) > 0 && !wanted[e.Type] {
				continue
			}
			if seenEdge[e.ID] || len(links) >= maxResults {
				continue
			}
			seenEdge[e.ID] = true
			links = append(links, LinkedSegment{SegmentID: e.SourceID, EdgeType: e.Type, Direction: "in", Depth: cur.depth + 1})
			if !visited[e.SourceID] {
				visited[e.SourceID] = true
				queue = append(queue, frontier{e.SourceID, cur.depth + 1})
			}
		}
	}

	return successResponse(ExploreLinksResult{SegmentID: segmentID, Count: len(links), Links: links})
}
