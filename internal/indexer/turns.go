package indexer

import (
	"regexp"
	"strings"
	"time"

	"memoire/internal/models"
)

// Turn is one speaker turn parsed out of a raw transcript.
type Turn struct {
	Timestamp  string
	Auteur     models.Author
	Texte      string
	TokenStart int
	TokenCount int
}

// TokenEnd returns the exclusive end of this turn's token range.
func (t Turn) TokenEnd() int {
	return t.TokenStart + t.TokenCount
}

var (
	inlineSource    = regexp.MustCompile(`(\S)\[SOURCE:(\w+)\]`)
	inlineTimestamp = regexp.MustCompile(`([^\]\n])\[(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?Z?)\]`)

	turnHeader = regexp.MustCompile(`(?i)\[(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?Z?)\]\s*` +
		`(human|assistant|user|utilisateur|aiter ego|moss)\s*:\s*`)

	danglingOpenBracket = regexp.MustCompile(`\[$`)
	danglingSource      = regexp.MustCompile(`\[SOURCE:\w*$`)
	danglingTimestamp   = regexp.MustCompile(`\[\d{4}-\d{2}-\d{2}T?\d{0,2}:?\d{0,2}:?\d{0,2}[^\]]*$`)
)

// shortTurnRunes is the fold threshold: a turn shorter than this merges into
// its immediate predecessor instead of starting a new segment.
const shortTurnRunes = 10

// cleanInlineMarkers neutralizes [SOURCE:xxx] and inline ISO-timestamp
// markers that appear mid-text (not at a turn boundary) so they cannot be
// mistaken for a new turn header, swapping the brackets for guillemets the
// header regex never matches.
func cleanInlineMarkers(text string) string {
	text = inlineSource.ReplaceAllString(text, "$1«SOURCE:$2»")
	text = inlineTimestamp.ReplaceAllString(text, "$1«$2»")
	return text
}

func normalizeAuteur(raw string) models.Author {
	switch strings.ToLower(raw) {
	case "human", "user", "utilisateur":
		return models.AuthorHuman
	default:
		return models.AuthorAssistant
	}
}

// ParseTurns splits a raw transcript into Turns: neutralizing inline
// markers, matching `[timestamp] role:` headers, folding short trailing
// fragments into their predecessor, and assigning a monotonically
// increasing token_start per genuinely new turn.
func ParseTurns(text string, tok Tokenizer) []Turn {
	text = cleanInlineMarkers(text)

	locs := turnHeader.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		trimmed := strings.TrimSpace(text)
		return []Turn{{
			Timestamp:  time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
			Auteur:     models.AuthorHuman,
			Texte:      trimmed,
			TokenStart: 0,
			TokenCount: tok.Count(trimmed),
		}}
	}

	var turns []Turn
	tokenCumule := 0

	for i, loc := range locs {
		timestamp := text[loc[2]:loc[3]]
		auteur := normalizeAuteur(text[loc[4]:loc[5]])

		start := loc[1]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		texte := strings.TrimSpace(text[start:end])

		texte = strings.TrimSpace(danglingOpenBracket.ReplaceAllString(texte, ""))
		texte = strings.TrimSpace(strings.TrimSuffix(texte, "[SOURCE:"))
		texte = strings.TrimSpace(danglingSource.ReplaceAllString(texte, ""))
		texte = strings.TrimSpace(danglingTimestamp.ReplaceAllString(texte, ""))

		if texte == "" {
			continue
		}

		if len([]rune(texte)) < shortTurnRunes && len(turns) > 0 {
			last := &turns[len(turns)-1]
			last.Texte += " " + texte
			last.TokenCount = tok.Count(last.Texte)
			continue
		}

		count := tok.Count(texte)
		turns = append(turns, Turn{
			Timestamp:  timestamp,
			Auteur:     auteur,
			Texte:      texte,
			TokenStart: tokenCumule,
			TokenCount: count,
		})
		tokenCumule += count
	}

	return turns
}
