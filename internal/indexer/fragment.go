package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var fragmentLineTimestamp = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?Z?\]`)

// WriteFragmentFile emits the tokenized mirror of text: each non-blank line
// prefixed with its cumulative token offset, so the Coherence Agent can map
// a byte range in the original transcript back to token positions. The path
// is derived from the first turn's timestamp:
// baseDir/YYYY/MM/<timestamp-with-:-and-.-replaced-by-dashes, 19 chars>.txt
func WriteFragmentFile(baseDir, text, timestamp string, tok Tokenizer) (string, error) {
	var b strings.Builder
	cumul := 0

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d|%s", cumul, line)

		if loc := fragmentLineTimestamp.FindStringIndex(line); loc != nil {
			content := strings.TrimSpace(line[loc[1]:])
			if content != "" {
				cumul += tok.Count(content)
			}
		} else {
			cumul += tok.Count(line)
		}
	}

	if len(timestamp) < 7 {
		return "", fmt.Errorf("indexer: timestamp %q too short to derive fragment path", timestamp)
	}
	month := strings.ReplaceAll(timestamp[:7], "-", string(filepath.Separator))
	outDir := filepath.Join(baseDir, month)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("indexer: create fragment dir %s: %w", outDir, err)
	}

	tsClean := strings.ReplaceAll(strings.ReplaceAll(timestamp, ":", "-"), ".", "-")
	if len(tsClean) > 19 {
		tsClean = tsClean[:19]
	}
	outPath := filepath.Join(outDir, tsClean+".txt")
	if err := os.WriteFile(outPath, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("indexer: write fragment file %s: %w", outPath, err)
	}
	return outPath, nil
}
