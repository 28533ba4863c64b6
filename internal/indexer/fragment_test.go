package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFragmentFileDerivesPathFromTimestamp(t *testing.T) {
	dir := t.TempDir()
	text := "[2025-03-14T10:00:00.000Z] human: bonjour tout le monde\nune ligne de suite"

	path, err := WriteFragmentFile(dir, text, "2025-03-14T10:00:00.000Z", wordCountTokenizer{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "2025", "03", "2025-03-14T10-00-00.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "0|[2025-03-14T10:00:00.000Z] human: bonjour tout le monde")
	assert.Contains(t, content, "|une ligne de suite")
}

func TestWriteFragmentFileSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	text := "ligne un\n\n\nligne deux"

	path, err := WriteFragmentFile(dir, text, "2025-03-14T10:00:00.000Z", wordCountTokenizer{})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitLines(string(data))
	assert.Len(t, lines, 2)
}

func TestWriteFragmentFileRejectsShortTimestamp(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteFragmentFile(dir, "x", "202", wordCountTokenizer{})
	assert.Error(t, err)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
