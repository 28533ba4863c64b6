package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"modernc.org/sqlite"
)

func init() {
	// Registers the accent/JSON-array-aware normalization function once,
	// process-wide, before any connection opens its first statement:
	// modernc.org/sqlite applies a RegisterDeterministicScalarFunction
	// registration to every connection the driver subsequently opens, so
	// there is no "forgot to inject on this connection" failure mode.
	if err := sqlite.RegisterDeterministicScalarFunction("normalize_search", 1, normalizeSearchSQL); err != nil {
		panic(fmt.Sprintf("store: registering normalize_search: %v", err))
	}
}

func normalizeSearchSQL(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("normalize_search: expected 1 argument, got %d", len(args))
	}
	text, _ := args[0].(string)
	return NormalizeSearch(text), nil
}

// NormalizeSearch implements the same normalization SQLite uses internally
// for entity-array columns: if text is a JSON array of strings, its
// elements are joined with spaces; accents are then stripped via NFD
// decomposition (dropping Unicode combining marks); the result is
// lowercased. Idempotent: normalizing an already-normalized string is a
// no-op.
func NormalizeSearch(text string) string {
	if text == "" {
		return ""
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") {
		var elems []string
		if err := json.Unmarshal([]byte(trimmed), &elems); err == nil {
			text = strings.Join(elems, " ")
		}
	}

	decomposed := norm.NFD.String(text)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	return strings.ToLower(b.String())
}
