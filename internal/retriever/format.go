package retriever

import (
	"fmt"
	"strings"
)

const defaultMaxTokensContext = 2000

// FormatContext renders scored segments for LLM consumption: a header, one
// block per result in input order labelled with its gr_id, and a token-budgeted
// truncation marker. Approximates tokens as 4 characters.
func FormatContext(scored []ScoredSegment, maxTokens int) string {
	if len(scored) == 0 {
		return ""
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokensContext
	}
	maxChars := maxTokens * 4

	var b strings.Builder
	header := "--- CONTEXTE MÉMOIRE ---\n"
	b.WriteString(header)
	current := len(header)

	for i, s := range scored {
		seg := s.Segment

		grInfo := ""
		if seg.GrID != nil {
			grInfo = fmt.Sprintf("bloc:%d", *seg.GrID)
		}
		confInfo := ""
		if seg.ConfidenceScore > 0 {
			confInfo = fmt.Sprintf("conf:%.2f", seg.ConfidenceScore)
		}
		dateStr := "N/A"
		if !seg.Timestamp.IsZero() {
			dateStr = seg.Timestamp.Format("2006-01-02")
		}

		var block strings.Builder
		fmt.Fprintf(&block, "\n[Mémoire %d] %s | %s %s | Score: %.2f\n", i+1, dateStr, grInfo, confInfo, s.Score)
		if len(seg.Personnes) > 0 {
			fmt.Fprintf(&block, "Personnes: %s\n", strings.Join(seg.Personnes, ", "))
		}
		if seg.ResumeTexte != "" {
			fmt.Fprintf(&block, "Résumé: %s\n", seg.ResumeTexte)
		}

		blockText := block.String()
		if current+len(blockText) > maxChars {
			b.WriteString("\n[... contexte tronqué ...]\n")
			break
		}
		b.WriteString(blockText)
		current += len(blockText)
	}

	b.WriteString("\n--- FIN CONTEXTE ---\n")
	return b.String()
}
