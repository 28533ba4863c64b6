// Package indexer implements Scribe: turn parsing of a raw transcript into
// timestamped segments, fragment-file generation, and the bulk and
// real-time insertion paths.
package indexer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens the same way the extractor backend's prompt
// budget does, using the cl100k_base encoding.
type Tokenizer interface {
	Count(text string) int
}

type cl100kTokenizer struct {
	enc *tiktoken.Tiktoken
}

var (
	defaultTokenizer     Tokenizer
	defaultTokenizerOnce sync.Once
	defaultTokenizerErr  error
)

// NewCL100KTokenizer loads the cl100k_base BPE encoding used throughout the
// original pipeline for per-turn and per-line token counts.
func NewCL100KTokenizer() (Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &cl100kTokenizer{enc: enc}, nil
}

// DefaultTokenizer lazily builds and caches the package-wide cl100k_base
// tokenizer, for callers that don't want to thread one through explicitly
// (the encoding's merge table is loaded once and is safe for concurrent use).
func DefaultTokenizer() (Tokenizer, error) {
	defaultTokenizerOnce.Do(func() {
		defaultTokenizer, defaultTokenizerErr = NewCL100KTokenizer()
	})
	return defaultTokenizer, defaultTokenizerErr
}

func (t *cl100kTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}
