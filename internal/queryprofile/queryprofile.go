// Package queryprofile converts a natural-language query into a
// models.QueryProfile via an external LLM backend, tolerating arbitrary
// well-formed responses and falling back to defaults whenever generation
// fails or returns something the repair pipeline cannot recover. It shares
// the extractor package's retry/repair shape, scaled down to a single JSON
// object instead of a batch array.
package queryprofile

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"memoire/internal/extractor"
	"memoire/internal/models"
)

// Generator turns a query string into a QueryProfile. It never returns an
// error: any failure degrades to models.DefaultProfile(), since the core
// must keep working even when the external LLM is unavailable.
type Generator interface {
	Generate(ctx context.Context, query string) models.QueryProfile
}

// LLMGenerator drives one extractor.Backend through a single-object prompt
// rather than the batch-array contract the Extractor Interface uses.
type LLMGenerator struct {
	backend extractor.Backend
	log     *logrus.Logger

	MaxRetries int
	RetryDelay time.Duration
}

// NewLLMGenerator builds an LLMGenerator around a Backend with a shorter
// retry posture than the batch extractor: profile generation sits on the
// query's critical path, so it fails fast to the default profile rather
// than stalling a user-facing request.
func NewLLMGenerator(backend extractor.Backend, log *logrus.Logger) *LLMGenerator {
	return &LLMGenerator{
		backend:    backend,
		log:        log,
		MaxRetries: 2,
		RetryDelay: 2 * time.Second,
	}
}

// Generate asks the backend to analyze query and returns the resulting
// profile, or the default profile if the backend errors or its response
// cannot be repaired into a well-formed object.
func (g *LLMGenerator) Generate(ctx context.Context, query string) models.QueryProfile {
	content, err := g.completeWithRetry(ctx, buildPrompt(query))
	if err != nil {
		g.log.WithError(err).WithField("backend", g.backend.Name()).
			Warn("queryprofile: generation exhausted retries, using default profile")
		return models.DefaultProfile()
	}

	profile, err := parseProfile(content)
	if err != nil {
		g.log.WithError(err).Warn("queryprofile: could not parse backend response, using default profile")
		return models.DefaultProfile()
	}
	return profile
}

func (g *LLMGenerator) completeWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < g.MaxRetries; attempt++ {
		content, err := g.backend.Complete(ctx, prompt)
		if err == nil {
			return content, nil
		}
		lastErr = err

		wait := g.RetryDelay
		if rl, ok := err.(extractor.RateLimited); ok && rl.RateLimited() {
			wait = g.RetryDelay * time.Duration(attempt+1)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("queryprofile: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return "", fmt.Errorf("queryprofile: exhausted %d retries: %w", g.MaxRetries, lastErr)
}

// buildPrompt asks the backend for a single JSON object carrying weights,
// filters and strategy for the given query.
func buildPrompt(query string) string {
	var b strings.Builder
	b.WriteString("Analyse cette requete et retourne un unique objet JSON.\n\n")
	fmt.Fprintf(&b, "REQUETE: %q\n\n", query)
	b.WriteString(`FORMAT: {"intent": "", "confidence": 0.0, "weights": {"tags_roget": 0.25, "emotion": 0.15, "timestamp": 0.20, "personnes": 0.20, "resume_texte": 0.20}, "filters": {"date_range_days": 0, "personnes": []}, "strategy": {"top_k": 5, "include_text_fallback": true}}` + "\n\nRETOURNE UNIQUEMENT L'OBJET JSON:")
	return b.String()
}

var (
	markdownFenceOpen  = regexp.MustCompile("```(?:json)?\\s*")
	markdownFenceClose = regexp.MustCompile("```\\s*")
	singleQuotedKey    = regexp.MustCompile(`'(\w+)'(\s*:)`)
	singleQuotedValue  = regexp.MustCompile(`:\s*'([^']*)'`)
	pyTrue             = regexp.MustCompile(`\bTrue\b`)
	pyFalse            = regexp.MustCompile(`\bFalse\b`)
	pyNone             = regexp.MustCompile(`\b(None|NULL|Null)\b`)
	trailingComma      = regexp.MustCompile(`,(\s*[\]}])`)
)

// repairJSON applies the same lightweight textual fixes as the Extractor
// Interface's repair stage, scaled down to a single object instead of an
// array of records.
func repairJSON(s string) string {
	s = singleQuotedKey.ReplaceAllString(s, `"$1"$2`)
	s = singleQuotedValue.ReplaceAllString(s, `: "$1"`)
	s = pyTrue.ReplaceAllString(s, "true")
	s = pyFalse.ReplaceAllString(s, "false")
	s = pyNone.ReplaceAllString(s, "null")
	s = trailingComma.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

func locateObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// parseProfile repairs and decodes a raw backend completion into a
// QueryProfile, applying FromAny's default-filling rules.
func parseProfile(content string) (models.QueryProfile, error) {
	cleaned := markdownFenceClose.ReplaceAllString(markdownFenceOpen.ReplaceAllString(content, ""), "")
	objText, ok := locateObject(cleaned)
	if !ok {
		return models.QueryProfile{}, fmt.Errorf("queryprofile: no JSON object found in response")
	}

	var w wireProfile
	if err := json.Unmarshal([]byte(objText), &w); err != nil {
		if err2 := json.Unmarshal([]byte(repairJSON(objText)), &w); err2 != nil {
			return models.QueryProfile{}, fmt.Errorf("queryprofile: decode object: %w", err)
		}
	}
	return normalize(w), nil
}

// wireWeights mirrors models.QueryWeights with pointer fields so absence
// (vs. an explicit zero) can be distinguished when filling defaults.
type wireWeights struct {
	TagsRoget   *float64 `json:"tags_roget"`
	Emotion     *float64 `json:"emotion"`
	Timestamp   *float64 `json:"timestamp"`
	Personnes   *float64 `json:"personnes"`
	ResumeTexte *float64 `json:"resume_texte"`
}

type wireStrategy struct {
	TopK                *int  `json:"top_k"`
	IncludeTextFallback *bool `json:"include_text_fallback"`
}

// wireProfile is the lenient decoding target for arbitrary well-formed
// QueryProfile JSON, whether it came from an LLM completion or was handed
// in directly as a map (see FromAny).
type wireProfile struct {
	Intent     string               `json:"intent"`
	Confidence *float64             `json:"confidence"`
	Weights    *wireWeights         `json:"weights"`
	Filters    *models.QueryFilters `json:"filters"`
	Strategy   *wireStrategy        `json:"strategy"`
}

func normalize(w wireProfile) models.QueryProfile {
	defaults := models.DefaultProfile()

	profile := models.QueryProfile{
		Intent:     w.Intent,
		Confidence: clamp01(derefFloat(w.Confidence, defaults.Confidence)),
		Weights:    defaults.Weights,
		Strategy:   defaults.Strategy,
	}
	if profile.Intent == "" {
		profile.Intent = defaults.Intent
	}
	if w.Filters != nil {
		profile.Filters = *w.Filters
	}
	if w.Weights != nil {
		profile.Weights = models.QueryWeights{
			TagsRoget:   nonNegative(derefFloat(w.Weights.TagsRoget, defaults.Weights.TagsRoget)),
			Emotion:     nonNegative(derefFloat(w.Weights.Emotion, defaults.Weights.Emotion)),
			Timestamp:   nonNegative(derefFloat(w.Weights.Timestamp, defaults.Weights.Timestamp)),
			Personnes:   nonNegative(derefFloat(w.Weights.Personnes, defaults.Weights.Personnes)),
			ResumeTexte: nonNegative(derefFloat(w.Weights.ResumeTexte, defaults.Weights.ResumeTexte)),
		}
	}
	if w.Strategy != nil {
		topK := defaults.Strategy.TopK
		if w.Strategy.TopK != nil && *w.Strategy.TopK > 0 {
			topK = *w.Strategy.TopK
		}
		includeFallback := defaults.Strategy.IncludeTextFallback
		if w.Strategy.IncludeTextFallback != nil {
			includeFallback = *w.Strategy.IncludeTextFallback
		}
		profile.Strategy = models.QueryStrategy{TopK: topK, IncludeTextFallback: includeFallback}
	}
	return profile
}

// FromAny accepts a models.QueryProfile, a map[string]any, a []byte, or a
// JSON string, and returns a fully-defaulted QueryProfile, for callers
// that already have a profile-shaped value (e.g. a tool-dispatch argument)
// rather than raw LLM text.
func FromAny(v any) (models.QueryProfile, error) {
	if profile, ok := v.(models.QueryProfile); ok {
		var w wireProfile
		b, err := json.Marshal(profile)
		if err != nil {
			return models.QueryProfile{}, fmt.Errorf("queryprofile: marshal profile: %w", err)
		}
		if err := json.Unmarshal(b, &w); err != nil {
			return models.QueryProfile{}, fmt.Errorf("queryprofile: round-trip profile: %w", err)
		}
		return normalize(w), nil
	}

	var raw []byte
	switch t := v.(type) {
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return models.QueryProfile{}, fmt.Errorf("queryprofile: marshal input: %w", err)
		}
		raw = b
	}

	var w wireProfile
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.QueryProfile{}, fmt.Errorf("queryprofile: decode input: %w", err)
	}
	return normalize(w), nil
}

func derefFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func nonNegative(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
