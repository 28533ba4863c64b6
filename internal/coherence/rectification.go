package coherence

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"memoire/internal/models"
	"memoire/internal/sbire"
)

// correctionPattern is one entry of the regex battery: twoGroups distinguishes
// "X, c'est Y" (old fact + new fact) from patterns that only surface the new
// fact.
type correctionPattern struct {
	re        *regexp.Regexp
	twoGroups bool
}

var correctionPatterns = []correctionPattern{
	{regexp.MustCompile(`(?i)non[,\s]+c'est\s+(.+?)(?:\.|$)`), false},
	{regexp.MustCompile(`(?i)en fait[,\s]+c'est\s+(.+?)(?:\.|$)`), false},
	{regexp.MustCompile(`(?i)correction\s*:\s*(.+?)(?:\.|$)`), false},
	{regexp.MustCompile(`(?i)la (?:vraie|bonne) (?:date|réponse|info)\s+(?:est|c'est)\s+(.+?)(?:\.|$)`), false},
	{regexp.MustCompile(`(?i)(?:tu|vous)\s+(?:te|vous)\s+trompe[sz]?\s*[,:]?\s*(.+?)(?:\.|$)`), false},
	{regexp.MustCompile(`(?i)c'est\s+(?:pas|plus)\s+(.+?)\s*[,;]\s*c'est\s+(.+?)(?:\.|$)`), true},
	{regexp.MustCompile(`(?i)(?:ce n'est|c'est) pas\s+(.+?)\s*[,;]\s*(?:mais|c'est)\s+(.+?)(?:\.|$)`), true},
	{regexp.MustCompile(`(?i)oublie\s+(.+?)\s*[,;]\s*(?:c'est|utilise)\s+(.+?)(?:\.|$)`), true},
	{regexp.MustCompile(`(?i)ne\s+(?:dis|utilise)\s+plus\s+(.+?)(?:\.|$)`), false},
}

var (
	keywordRun        = regexp.MustCompile(`[\p{L}\d_]{4,}`)
	shortKeywordRun   = regexp.MustCompile(`[\p{L}\d_]{3,}`)
	contradictionIDRe = regexp.MustCompile(`\d+`)
)

var rectificationStopwords = map[string]bool{
	"est": true, "sont": true, "était": true, "cette": true,
	"pour": true, "dans": true, "avec": true, "plus": true, "fait": true,
}

// RectificationResult is the outcome of one Phase A pass.
type RectificationResult struct {
	CorrectionsDetected int
	SegmentsRectified   int
	LinksCreated        int
	MandatesExecuted    int
	Corrections         []models.Correction
	Errors              []string
}

// Rectification detects and marks factual errors in just-indexed content.
type Rectification struct {
	cfg Config
	sb  *sbire.Sbire
	llm LLM
	log *logrus.Logger
}

// NewRectification builds the Phase A module.
func NewRectification(cfg Config, sb *sbire.Sbire, llm LLM, log *logrus.Logger) *Rectification {
	return &Rectification{cfg: cfg, sb: sb, llm: llm, log: log}
}

// Process detects corrections in content and rectifies the segments they
// contradict.
func (r *Rectification) Process(ctx context.Context, content string) RectificationResult {
	result := RectificationResult{}

	corrections := r.detectCorrections(ctx, content, &result)
	result.CorrectionsDetected = len(corrections)
	result.Corrections = corrections
	if len(corrections) == 0 {
		return result
	}

	for i := range corrections {
		r.processCorrection(ctx, &corrections[i], &result)
	}
	return result
}

func (r *Rectification) detectCorrections(ctx context.Context, content string, result *RectificationResult) []models.Correction {
	var corrections []models.Correction
	lines := strings.Split(content, "\n")

	for _, line := range lines {
		for _, p := range correctionPatterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			var ancien, nouveau string
			if p.twoGroups && len(m) >= 3 {
				ancien = strings.TrimSpace(m[1])
				nouveau = strings.TrimSpace(m[2])
			} else if len(m) >= 2 {
				nouveau = strings.TrimSpace(m[1])
			}
			if len(nouveau) > 3 {
				corrections = append(corrections, models.Correction{
					OldClaim:     ancien,
					NewClaim:     nouveau,
					DominantWord: dominantKeyword(nouveau + " " + ancien),
				})
			}
		}
	}

	seen := make(map[string]bool)
	var unique []models.Correction
	for _, c := range corrections {
		key := dedupeKey(c.NewClaim)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, c)
	}

	if len(unique) < 3 && len(content) > 2000 && r.llm != nil {
		truncated := content
		if len(truncated) > 8000 {
			truncated = truncated[:8000]
		}
		for _, c := range r.detectWithLLM(ctx, truncated, result) {
			key := dedupeKey(c.NewClaim)
			if seen[key] {
				continue
			}
			seen[key] = true
			unique = append(unique, c)
		}
	}

	return unique
}

func dedupeKey(s string) string {
	s = strings.ToLower(s)
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}

func dominantKeyword(text string) string {
	keywords := filterStopwords(keywordRun.FindAllString(strings.ToLower(text), -1))
	if len(keywords) == 0 {
		return ""
	}
	return keywords[0]
}

func filterStopwords(words []string) []string {
	var out []string
	for _, w := range words {
		if !rectificationStopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

const rectificationSystemPrompt = `Tu es Mnémosyne, l'agent de cohérence mémorielle.

MISSION: Identifier les CORRECTIONS FACTUELLES explicites dans ce texte.

Une correction = l'humain rectifie une ERREUR factuelle:
- "Non, c'est le 9 mai, pas décembre"
- "La vraie date c'est..."
- "Tu te trompes, c'est X pas Y"

IMPORTANT:
- NE CONFONDS PAS correction et évolution de pensée
- Correction = ERREUR rectifiée
- Évolution = changement d'avis (pas une erreur)

Réponds UNIQUEMENT en JSON valide:
{"corrections": [{"ancien_fait": "...", "nouveau_fait": "...", "confidence": 0.0-1.0, "contexte": "..."}]}

Si AUCUNE correction: {"corrections": []}`

type wireCorrection struct {
	AncienFait  string  `json:"ancien_fait"`
	NouveauFait string  `json:"nouveau_fait"`
	Confidence  float64 `json:"confidence"`
	Contexte    string  `json:"contexte"`
}

func (r *Rectification) detectWithLLM(ctx context.Context, content string, result *RectificationResult) []models.Correction {
	prompt := rectificationSystemPrompt + "\n\nAnalyse ce texte:\n\n" + content
	raw, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("llm detect: %v", err))
		return nil
	}

	var parsed struct {
		Corrections []wireCorrection `json:"corrections"`
	}
	if err := decodeObject(raw, &parsed); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("llm detect parse: %v", err))
		return nil
	}

	var out []models.Correction
	for _, c := range parsed.Corrections {
		if c.NouveauFait == "" {
			continue
		}
		out = append(out, models.Correction{
			OldClaim:     c.AncienFait,
			NewClaim:     c.NouveauFait,
			DominantWord: dominantKeyword(c.NouveauFait + " " + c.AncienFait),
		})
	}
	return out
}

func (r *Rectification) processCorrection(ctx context.Context, correction *models.Correction, result *RectificationResult) {
	mandat := r.generateMandat(*correction)
	var all []models.SearchHit

	maxIter := r.cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 5
	}

	for iteration := 1; iteration <= maxIter; iteration++ {
		mandat.Iteration = iteration
		hits := r.sb.Execute(ctx, mandat)
		all = append(all, hits...)
		result.MandatesExecuted++

		if len(all) >= 20 {
			break
		}
		if len(hits) == 0 && iteration > 2 {
			break
		}
		if len(hits) < 5 {
			mandat = r.refineMandat(mandat, hits, *correction)
		}
	}

	if len(all) > 0 {
		r.rectifyErrors(ctx, *correction, all, result)
	}
}

func (r *Rectification) generateMandat(correction models.Correction) models.Mandat {
	if correction.DominantWord != "" {
		return models.Mandat{
			Type:       models.MandatSQL,
			Query:      correction.DominantWord,
			Context:    "Cherche erreurs sur: " + truncate(correction.NewClaim, 50),
			MaxResults: 50,
		}
	}
	return models.Mandat{
		Type:       models.MandatGrep,
		Pattern:    strings.ReplaceAll(truncate(correction.NewClaim, 30), " ", `\s+`),
		Context:    "Cherche: " + truncate(correction.NewClaim, 50),
		MaxResults: 50,
	}
}

func (r *Rectification) refineMandat(old models.Mandat, results []models.SearchHit, correction models.Correction) models.Mandat {
	if old.Type == models.MandatSQL && len(results) == 0 {
		return models.Mandat{Type: models.MandatWord2Vec, Query: old.Query, Context: old.Context, Iteration: old.Iteration + 1, MaxResults: old.MaxResults}
	}
	if old.Type == models.MandatWord2Vec && len(results) == 0 {
		keywords := filterStopwords(shortKeywordRun.FindAllString(strings.ToLower(correction.NewClaim), -1))
		if len(keywords) > 0 {
			if len(keywords) > 3 {
				keywords = keywords[:3]
			}
			return models.Mandat{Type: models.MandatGrep, Pattern: strings.Join(keywords, "|"), Context: old.Context, Iteration: old.Iteration + 1, MaxResults: old.MaxResults}
		}
	}
	if correction.OldClaim != "" && old.Iteration < 5 {
		firstWord := old.Query
		if fields := strings.Fields(correction.OldClaim); len(fields) > 0 {
			firstWord = fields[0]
		}
		return models.Mandat{Type: models.MandatSQL, Query: firstWord, Context: old.Context, Iteration: old.Iteration + 1, MaxResults: old.MaxResults}
	}
	return old
}

func (r *Rectification) rectifyErrors(ctx context.Context, correction models.Correction, results []models.SearchHit, result *RectificationResult) {
	var candidates []models.SearchHit
	for _, hit := range results {
		if hit.StatutVerite != models.TruthRefuted {
			candidates = append(candidates, hit)
		}
	}
	if len(candidates) == 0 {
		return
	}
	if len(candidates) > 20 {
		candidates = candidates[:20]
	}

	contradictions := r.findContradictions(ctx, correction, candidates, result)

	for _, segmentID := range contradictions {
		if r.cfg.DryRun {
			r.log.WithField("segment_id", segmentID).Debug("coherence: [dry-run] would mark segment refuted")
			continue
		}
		if r.sb.UpdateStatutVerite(ctx, segmentID, models.TruthRefuted) {
			result.SegmentsRectified++
			if correction.SegmentID != nil {
				meta := fmt.Sprintf(`{"raison":%q}`, truncate(correction.NewClaim, 100))
				if r.sb.InsertEdge(ctx, segmentID, *correction.SegmentID, models.EdgeCorrigePar, meta, 1.0) {
					result.LinksCreated++
				}
			}
		}
	}
}

func (r *Rectification) findContradictions(ctx context.Context, correction models.Correction, candidates []models.SearchHit, result *RectificationResult) []int64 {
	if r.llm == nil {
		return nil
	}

	var b strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&b, "[ID:%d] %s\n", c.SegmentID, truncate(c.ResumeTexte, 200))
	}

	prompt := fmt.Sprintf(`FAIT ÉTABLI: %q

Voici des segments de mémoire. Lesquels CONTREDISENT ce fait?
(Contradiction = affirmer quelque chose de FAUX, pas juste différent)

%s

Réponds UNIQUEMENT avec les IDs des segments contradictoires, séparés par des virgules.
Si aucun: "AUCUN"
Exemple: 12345, 67890`, correction.NewClaim, b.String())

	raw, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("llm contradictions: %v", err))
		return nil
	}
	if strings.Contains(strings.ToUpper(raw), "AUCUN") {
		return nil
	}

	validIDs := make(map[int64]bool, len(candidates))
	for _, c := range candidates {
		validIDs[c.SegmentID] = true
	}

	var ids []int64
	for _, match := range contradictionIDRe.FindAllString(raw, -1) {
		n, err := strconv.ParseInt(match, 10, 64)
		if err != nil || !validIDs[n] {
			continue
		}
		ids = append(ids, n)
	}
	return ids
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
