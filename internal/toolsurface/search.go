package toolsurface

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"memoire/internal/retriever"
)

// SearchMemoryHit is one search_memory result; resume_texte is omitted
// unless the caller asked for include_texte, keeping the default payload
// cheap for list views.
type SearchMemoryHit struct {
	SegmentID   int64     `json:"segment_id"`
	Timestamp   time.Time `json:"timestamp"`
	SourceFile  string    `json:"source_file"`
	Score       float64   `json:"score"`
	ResumeTexte string    `json:"resume_texte,omitempty"`
	Personnes   []string  `json:"personnes,omitempty"`
	GrID        *int64    `json:"gr_id,omitempty"`
}

// SearchMemoryResult is search_memory's success payload, reporting which
// profile drove scoring and whether the raw-text fallback fired.
type SearchMemoryResult struct {
	Query       string            `json:"query"`
	Count       int               `json:"count"`
	Fallback    bool              `json:"fallback"`
	ProfileUsed string            `json:"profile_used"`
	Results     []SearchMemoryHit `json:"results"`
}

// searchMemory runs the full Hermès pipeline: SQL-narrowed candidates,
// in-process scoring, and a raw-text fallback when metadata search is empty.
func (d *Dispatcher) searchMemory(ctx context.Context, p map[string]any) Response {
	query := paramString(p, "query", "")
	if query == "" {
		return errorResponse(errors.New("search_memory: query is required"))
	}
	topK := paramInt(p, "top_k", 5)
	includeTexte := paramBool(p, "include_texte", false)

	result, err := d.retriever.Run(ctx, query, nil, retriever.RunOptions{TopK: topK})
	if err != nil {
		return errorResponse(fmt.Errorf("search_memory: %w", err))
	}

	hits := make([]SearchMemoryHit, 0, len(result.Results))
	for _, s := range result.Results {
		hit := SearchMemoryHit{
			SegmentID:  s.Segment.ID,
			Timestamp:  s.Segment.Timestamp,
			SourceFile: s.Segment.SourceFile,
			Score:      s.Score,
			Personnes:  s.Segment.Personnes,
			GrID:       s.Segment.GrID,
		}
		if includeTexte {
			hit.ResumeTexte = s.Segment.ResumeTexte
		}
		hits = append(hits, hit)
	}

	return successResponse(SearchMemoryResult{
		Query:       query,
		Count:       result.Count,
		Fallback:    result.Fallback,
		ProfileUsed: result.ProfileUsed.Source,
		Results:     hits,
	})
}

// SearchFilesHit is one search_files match.
type SearchFilesHit struct {
	File    string `json:"file"`
	Snippet string `json:"snippet"`
}

// SearchFilesResult is search_files's success payload.
type SearchFilesResult struct {
	Query   string           `json:"query"`
	Scope   string           `json:"scope"`
	Count   int              `json:"count"`
	Results []SearchFilesHit `json:"results"`
}

var searchFilesScopes = map[string]time.Duration{
	"day":   24 * time.Hour,
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
}

// searchFiles is a raw case-insensitive grep over the indexed fragment
// files, newest first, narrowed by file modification time through the scope
// preset (day/week/month/all, default "all"); no explicit from/to window is
// read. Unlike search_memory this never
// touches the metadata table: it is the textual-scan step that precedes
// semantic search in the wider retrieval cascade.
func (d *Dispatcher) searchFiles(_ context.Context, p map[string]any) Response {
	query := paramString(p, "query", "")
	if query == "" {
		return errorResponse(errors.New("search_files: query is required"))
	}
	if d.textBaseDir == "" {
		return errorResponse(errors.New("search_files: no text base directory configured"))
	}
	scope := paramString(p, "scope", "all")
	maxResults := paramInt(p, "max_results", 20)

	var cutoff time.Time
	if dur, ok := searchFilesScopes[scope]; ok {
		cutoff = time.Now().Add(-dur)
	}

	type match struct {
		hit     SearchFilesHit
		modTime time.Time
	}
	var matches []match
	needle := strings.ToLower(query)

	err := filepath.WalkDir(d.textBaseDir, func(path string, de os.DirEntry, err error) error {
		if err != nil || de.IsDir() {
			return err
		}
		info, ierr := de.Info()
		if ierr != nil {
			return nil
		}
		if !cutoff.IsZero() && info.ModTime().Before(cutoff) {
			return nil
		}
		content, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil
		}
		for _, line := range strings.Split(string(content), "\n") {
			if !strings.Contains(strings.ToLower(line), needle) {
				continue
			}
			rel, _ := filepath.Rel(d.textBaseDir, path)
			snippet := line
			if idx := strings.IndexByte(snippet, '|'); idx >= 0 {
				snippet = snippet[idx+1:]
			}
			if len(snippet) > 300 {
				snippet = snippet[:300]
			}
			matches = append(matches, match{hit: SearchFilesHit{File: rel, Snippet: snippet}, modTime: info.ModTime()})
			break
		}
		return nil
	})
	if err != nil {
		return errorResponse(fmt.Errorf("search_files: %w", err))
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].modTime.After(matches[j].modTime) })
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}

	hits := make([]SearchFilesHit, len(matches))
	for i, m := range matches {
		hits[i] = m.hit
	}

	return successResponse(SearchFilesResult{Query: query, Scope: scope, Count: len(hits), Results: hits})
}
