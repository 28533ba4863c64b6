// Package extractor provides a uniform contract over metadata-extraction
// backends (local or remote batch LLMs), with retry, JSON repair and a
// last-known-good fallback per segment.
package extractor

import "context"

// Backend is one metadata-extraction provider. It returns the raw
// completion text for a batch prompt; parsing and repair are the Client's
// job, shared across every backend rather than duplicated per provider.
type Backend interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// RateLimited is implemented by backend errors that should back off longer
// than a plain transport failure (HTTP 429, provider rate-limit responses).
type RateLimited interface {
	error
	RateLimited() bool
}
