// Package retriever implements Hermès: a deterministic query parser,
// candidate SQL generation over the Store, per-signal scoring, weighted
// combination, specialized facets, and a raw-text fallback scan.
package retriever

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// ParsedQuery is the deterministic extraction from a natural-language
// query string, before any candidate SQL is built.
type ParsedQuery struct {
	MotsCles       []string
	TagsExplicites []string
	Personnes      []string
	DateDebut      *time.Time
	DateFin        *time.Time
	EmotionCible   *EmotionTarget
}

// EmotionTarget is a 2-D (valence, activation) point a query asks results
// to resonate with.
type EmotionTarget struct {
	Valence    float64
	Activation float64
}

var (
	explicitTag  = regexp.MustCompile(`\b\d{2}-\d{4}-\d{4}\b`)
	quotedName   = regexp.MustCompile(`["«]([^"»]{2,40})["»]`)
	capitalWord  = regexp.MustCompile(`\b\p{Lu}[\p{Ll}'-]+\b`)
	wordSplitter = regexp.MustCompile(`[\p{L}0-9_]+`)
)

var stopWords = map[string]bool{
	"le": true, "la": true, "les": true, "un": true, "une": true, "des": true,
	"de": true, "du": true, "et": true, "ou": true, "a": true, "à": true,
	"au": true, "aux": true, "en": true, "dans": true, "sur": true, "pour": true,
	"par": true, "avec": true, "sans": true, "qui": true, "que": true, "quoi": true,
	"est": true, "sont": true, "etait": true, "était": true, "ce": true, "cette": true,
	"ces": true, "il": true, "elle": true, "nous": true, "vous": true, "ils": true,
	"elles": true, "je": true, "tu": true, "on": true, "se": true, "son": true,
	"sa": true, "ses": true, "leur": true, "leurs": true, "mon": true, "ma": true,
	"mes": true, "ton": true, "ta": true, "tes": true, "ne": true, "pas": true,
	"plus": true, "moins": true, "si": true, "mais": true, "donc": true, "or": true,
	"ni": true, "car": true, "comme": true, "the": true, "of": true, "and": true,
}

// emotionTriggers maps French emotion words to an approximate (valence,
// activation) target, the same two axes models.Segment stores per segment.
var emotionTriggers = map[string]EmotionTarget{
	"content":     {Valence: 0.6, Activation: 0.5},
	"heureux":     {Valence: 0.8, Activation: 0.6},
	"heureuse":    {Valence: 0.8, Activation: 0.6},
	"joyeux":      {Valence: 0.8, Activation: 0.7},
	"triste":      {Valence: -0.7, Activation: 0.3},
	"tristesse":   {Valence: -0.7, Activation: 0.3},
	"inquiet":     {Valence: -0.5, Activation: 0.7},
	"inquiete":    {Valence: -0.5, Activation: 0.7},
	"anxieux":     {Valence: -0.6, Activation: 0.8},
	"stresse":     {Valence: -0.5, Activation: 0.8},
	"stressé":     {Valence: -0.5, Activation: 0.8},
	"colere":      {Valence: -0.8, Activation: 0.9},
	"colère":      {Valence: -0.8, Activation: 0.9},
	"enerve":      {Valence: -0.6, Activation: 0.8},
	"énervé":      {Valence: -0.6, Activation: 0.8},
	"calme":       {Valence: 0.3, Activation: 0.1},
	"serein":      {Valence: 0.5, Activation: 0.2},
	"sereine":     {Valence: 0.5, Activation: 0.2},
	"excite":      {Valence: 0.6, Activation: 0.9},
	"excité":      {Valence: 0.6, Activation: 0.9},
	"fatigue":     {Valence: -0.2, Activation: 0.1},
	"fatigué":     {Valence: -0.2, Activation: 0.1},
	"fier":        {Valence: 0.7, Activation: 0.5},
	"fiere":       {Valence: 0.7, Activation: 0.5},
}

// dateRangeTriggers maps French relative-date phrases to a lookback
// duration from "now", consumed when the phrase appears anywhere in query.
var dateRangeTriggers = []struct {
	phrase string
	since  time.Duration
}{
	{"aujourd'hui", 24 * time.Hour},
	{"cette semaine", 7 * 24 * time.Hour},
	{"la semaine derniere", 14 * 24 * time.Hour},
	{"la semaine dernière", 14 * 24 * time.Hour},
	{"ce mois", 30 * 24 * time.Hour},
	{"le mois dernier", 60 * 24 * time.Hour},
	{"cette annee", 365 * 24 * time.Hour},
	{"cette année", 365 * 24 * time.Hour},
	{"l'an dernier", 730 * 24 * time.Hour},
	{"l'annee derniere", 730 * 24 * time.Hour},
	{"l'année dernière", 730 * 24 * time.Hour},
}

// ParseQuery extracts keywords, explicit tags, person names, an optional
// date range and an optional emotion target from a raw query. now is
// injected so callers control the reference point for relative-date
// phrases.
func ParseQuery(query string, now time.Time) ParsedQuery {
	parsed := ParsedQuery{
		TagsExplicites: explicitTag.FindAllString(query, -1),
	}

	parsed.Personnes = extractPersonnes(query)
	parsed.MotsCles = extractKeywords(query, 5)
	parsed.EmotionCible = extractEmotionTarget(query)

	lower := strings.ToLower(query)
	for _, trig := range dateRangeTriggers {
		if strings.Contains(lower, trig.phrase) {
			debut := now.Add(-trig.since)
			parsed.DateDebut = &debut
			parsed.DateFin = &now
			break
		}
	}

	return parsed
}

func extractPersonnes(query string) []string {
	seen := map[string]bool{}
	var names []string

	for _, m := range quotedName.FindAllStringSubmatch(query, -1) {
		name := strings.TrimSpace(m[1])
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	words := strings.Fields(query)
	for i, w := range words {
		if !capitalWord.MatchString(w) {
			continue
		}
		if i == 0 && isSentenceStart(query) {
			// A capitalized first word is more likely sentence case than
			// a name unless it chains with another capitalized word.
			if i+1 >= len(words) || !capitalWord.MatchString(words[i+1]) {
				continue
			}
		}
		name := strings.Trim(w, ".,!?;:\"'«»")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func isSentenceStart(query string) bool {
	trimmed := strings.TrimSpace(query)
	return trimmed != "" && unicode.IsUpper([]rune(trimmed)[0])
}

func extractKeywords(query string, max int) []string {
	var keywords []string
	seen := map[string]bool{}
	for _, w := range wordSplitter.FindAllString(strings.ToLower(query), -1) {
		if len(w) < 3 || stopWords[w] || explicitTag.MatchString(w) {
			continue
		}
		if seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
		if len(keywords) >= max {
			break
		}
	}
	return keywords
}

func extractEmotionTarget(query string) *EmotionTarget {
	lower := strings.ToLower(query)
	for _, w := range wordSplitter.FindAllString(lower, -1) {
		if target, ok := emotionTriggers[w]; ok {
			t := target
			return &t
		}
	}
	return nil
}
