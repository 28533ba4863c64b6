package models

// MandatType enumerates the Coherence Agent's typed search requests.
type MandatType string

const (
	MandatGrep     MandatType = "grep"
	MandatSQL      MandatType = "sql"
	MandatWord2Vec MandatType = "word2vec"
)

// Mandat is a typed, bounded search request issued by the Coherence Agent to
// its executor (Sbire). Fields outside the relevant variant are left zero;
// Go has no tagged union, so this is a plain record with a discriminant
// field rather than a sum type.
type Mandat struct {
	Type       MandatType
	Pattern    string // grep
	Query      string // sql, word2vec
	Context    string
	Iteration  int
	MaxResults int
}

// SearchHit is one result returned by a Sbire mandate. GREP populates File,
// LineNo, TokenStart, Content and MatchedText; SQL and WORD2VEC populate the
// segment fields instead, leaving the grep-only fields zero.
type SearchHit struct {
	// GREP fields.
	File        string
	LineNo      int
	TokenStart  int
	Content     string
	MatchedText string

	// SQL / WORD2VEC fields.
	SegmentID    int64
	SourceFile   string
	ResumeTexte  string
	StatutVerite TruthStatus
	Personnes    []string
	Projets      []string
	Sujets       []string
	TokenEnd     int
}

// Correction is a detected factual correction in a transcript.
type Correction struct {
	OldClaim     string
	NewClaim     string
	DominantWord string
	SegmentID    *int64 // the segment containing the correcting statement, if known
}

// Trajectoire is a detected evolution (not an error) between two claims.
type Trajectoire struct {
	Ancien string
	Nouveau string
	Type    EdgeType // TRAJECTOIRE, GENEALOGIE or EVOLUE_VERS
}

// PilierPropose is an LLM-proposed long-lived fact awaiting insertion.
type PilierPropose struct {
	Fact       string
	Category   PilierCategory
	Importance int
	SourceID   *int64
}
