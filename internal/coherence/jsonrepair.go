package coherence

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Local, lightweight JSON-object repair for the Coherence Agent's LLM
// responses. Each phase prompts for a single well-known object shape
// ({"corrections": [...]}, {"trajectoires": [...]}, {"piliers": [...]}), so
// this mirrors queryprofile's own local repair pass rather than the
// extractor package's array-oriented one: same failure modes (markdown
// fences, trailing commas), smaller surface.
var (
	fenceOpen     = regexp.MustCompile("```(?:json)?\\s*")
	fenceClose    = regexp.MustCompile("```\\s*")
	trailingComma = regexp.MustCompile(`,(\s*[\]}])`)
)

func stripFences(s string) string {
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// locateObject finds the enclosing '{' ... '}' span of a response.
func locateObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}
	end := strings.LastIndex(s, "}")
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// decodeObject runs the repair pipeline against a raw completion and
// unmarshals it into v. It never panics; callers treat any error as "no
// usable response" and move on.
func decodeObject(content string, v any) error {
	cleaned := stripFences(content)
	obj, ok := locateObject(cleaned)
	if !ok {
		return errNoObject
	}
	if err := json.Unmarshal([]byte(obj), v); err == nil {
		return nil
	}
	repaired := trailingComma.ReplaceAllString(obj, "$1")
	return json.Unmarshal([]byte(repaired), v)
}

var errNoObject = jsonRepairError("coherence: no JSON object found in response")

type jsonRepairError string

func (e jsonRepairError) Error() string { return string(e) }
