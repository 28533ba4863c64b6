package extractor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// wireRecord mirrors the JSON shape extractor backends are prompted to
// return. Field names match the prompt format exactly so a backend's raw
// completion parses without translation.
type wireRecord struct {
	Indexable *bool `json:"indexable"`

	TagsRoget []string `json:"tags_roget"`

	EmotionValence    *float64 `json:"emotion_valence"`
	EmotionActivation *float64 `json:"emotion_activation"`

	PhysiqueEnergie      *float64 `json:"physique_energie"`
	PhysiqueStress       *float64 `json:"physique_stress"`
	CognitionCertitude   *float64 `json:"cognition_certitude"`
	CognitionComplexite  *float64 `json:"cognition_complexite"`
	CognitionAbstraction *float64 `json:"cognition_abstraction"`
	CommClarte           *float64 `json:"comm_clarte"`
	CommFormalite        *float64 `json:"comm_formalite"`

	Entites struct {
		Personnes []string `json:"personnes"`
		Lieux     []string `json:"lieux"`
		Projets   []string `json:"projets"`
		Sujets    []string `json:"sujets"`
	} `json:"entites"`

	ResumeTexte     string   `json:"resume_texte"`
	ResumeMotsCles  []string `json:"resume_mots_cles"`
	GrID            *int64   `json:"gr_id"`
	ConfidenceScore *float64 `json:"confidence_score"`

	PersonneCandidat string `json:"personne_candidat"`
	ProjetCandidat   string `json:"projet_candidat"`
}

var (
	markdownFenceOpen  = regexp.MustCompile("```(?:json)?\\s*")
	markdownFenceClose = regexp.MustCompile("```\\s*")

	lineComment       = regexp.MustCompile(`(?m)//.*$`)
	blockComment      = regexp.MustCompile(`(?s)/\*.*?\*/`)
	singleQuotedKey   = regexp.MustCompile(`'(\w+)'(\s*:)`)
	singleQuotedValue = regexp.MustCompile(`:\s*'([^']*)'`)
	pyTrue            = regexp.MustCompile(`\bTrue\b`)
	pyFalse           = regexp.MustCompile(`\bFalse\b`)
	pyNone            = regexp.MustCompile(`\b(None|NULL|Null)\b`)
	unquotedKey       = regexp.MustCompile(`([{,])\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
	trailingComma     = regexp.MustCompile(`,(\s*[\]}])`)
	missingCommaAfter = regexp.MustCompile(`(")\s*\n(\s*")`)
	missingCommaVal   = regexp.MustCompile(`(\d|true|false|null)\s*\n(\s*")`)
	missingCommaClose = regexp.MustCompile(`([\]}])\s*\n(\s*")`)
	controlChars      = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
)

// stripMarkdownFences removes ```json / ``` wrappers a chat-completion
// model commonly adds around its JSON output.
func stripMarkdownFences(s string) string {
	s = markdownFenceOpen.ReplaceAllString(s, "")
	s = markdownFenceClose.ReplaceAllString(s, "")
	return s
}

// locateArray finds the enclosing '[' ... ']' span, the JSON array the
// batch prompt asks for. A response truncated before its closing bracket
// (the model ran out of output tokens mid-object) still has its opening
// '[' but no ']'; callers recover that case via truncateAndClose.
func locateArray(s string) (string, bool) {
	start := strings.Index(s, "[")
	if start == -1 {
		return "", false
	}
	end := strings.LastIndex(s, "]")
	if end <= start {
		return s[start:], true
	}
	return s[start : end+1], true
}

// repairJSON applies a series of best-effort textual fixes: comment
// stripping, quote normalization, literal translation, unquoted keys, and
// missing/trailing comma repair.
func repairJSON(s string) string {
	s = lineComment.ReplaceAllString(s, "")
	s = blockComment.ReplaceAllString(s, "")

	s = singleQuotedKey.ReplaceAllString(s, `"$1"$2`)
	s = singleQuotedValue.ReplaceAllString(s, `: "$1"`)

	s = pyTrue.ReplaceAllString(s, "true")
	s = pyFalse.ReplaceAllString(s, "false")
	s = pyNone.ReplaceAllString(s, "null")

	s = unquotedKey.ReplaceAllString(s, `$1 "$2":`)

	s = trailingComma.ReplaceAllString(s, "$1")

	s = missingCommaAfter.ReplaceAllString(s, "$1,\n$2")
	s = missingCommaVal.ReplaceAllString(s, "$1,\n$2")
	s = missingCommaClose.ReplaceAllString(s, "$1,\n$2")

	s = controlChars.ReplaceAllString(s, "")
	s = trailingComma.ReplaceAllString(s, "$1")

	return strings.TrimSpace(s)
}

// truncateAndClose amputates a dangling last element from a JSON array that
// was cut off mid-object (the backend's response was truncated) and closes
// the array at the last complete element.
func truncateAndClose(s string) (string, bool) {
	lastComplete := strings.LastIndex(s, "},")
	if lastComplete == -1 {
		lastObjEnd := strings.LastIndex(s, "}")
		if lastObjEnd == -1 {
			return "", false
		}
		return s[:lastObjEnd+1] + "]", true
	}
	return s[:lastComplete+1] + "]", true
}

// parsedBatch is the outcome of running the repair pipeline: one wireRecord
// per requested segment, each flagged placeholder when it stands in for a
// record the pipeline could not recover (total parse failure, or padding a
// short array) rather than one the backend actually populated.
type parsedBatch struct {
	records     []wireRecord
	placeholder []bool
}

// parseBatchResponse runs the full repair pipeline over one backend
// completion and returns exactly `expected` wireRecords, marking any it had
// to pad or fully fall back on.
func parseBatchResponse(content string, expected int) parsedBatch {
	cleaned := stripMarkdownFences(content)
	arrayText, ok := locateArray(cleaned)
	if !ok {
		return allPlaceholders(expected)
	}

	records, err := decodeArray(arrayText)
	if err != nil {
		repaired := repairJSON(arrayText)
		records, err = decodeArray(repaired)
	}
	if err != nil {
		if truncated, ok := truncateAndClose(repairJSON(arrayText)); ok {
			records, err = decodeArray(truncated)
		}
	}
	if err != nil {
		return allPlaceholders(expected)
	}

	placeholder := make([]bool, len(records))
	for len(records) < expected {
		records = append(records, wireRecord{})
		placeholder = append(placeholder, true)
	}
	if len(records) > expected {
		records = records[:expected]
		placeholder = placeholder[:expected]
	}
	return parsedBatch{records: records, placeholder: placeholder}
}

func decodeArray(s string) ([]wireRecord, error) {
	var records []wireRecord
	if err := json.Unmarshal([]byte(s), &records); err != nil {
		return nil, fmt.Errorf("extractor: decode batch array: %w", err)
	}
	return records, nil
}

func allPlaceholders(n int) parsedBatch {
	placeholder := make([]bool, n)
	for i := range placeholder {
		placeholder[i] = true
	}
	return parsedBatch{records: make([]wireRecord, n), placeholder: placeholder}
}
