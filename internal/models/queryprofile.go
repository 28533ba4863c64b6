package models

// QueryProfile carries the weights, filters and strategy a QueryProfile
// Generator produces for one natural-language query. Accepted either as
// this struct or as an equivalent map (see queryprofile.FromAny).
type QueryProfile struct {
	Intent     string             `json:"intent"`
	Confidence float64            `json:"confidence"`
	Weights    QueryWeights       `json:"weights"`
	Filters    QueryFilters       `json:"filters"`
	Strategy   QueryStrategy      `json:"strategy"`
}

// QueryWeights are the per-signal weights combined linearly by the Retriever.
type QueryWeights struct {
	TagsRoget   float64 `json:"tags_roget"`
	Emotion     float64 `json:"emotion"`
	Timestamp   float64 `json:"timestamp"`
	Personnes   float64 `json:"personnes"`
	ResumeTexte float64 `json:"resume_texte"`
}

// QueryFilters narrows candidate generation before scoring.
type QueryFilters struct {
	DateRangeDays int      `json:"date_range_days,omitempty"`
	Personnes     []string `json:"personnes,omitempty"`
}

// QueryStrategy controls result shaping.
type QueryStrategy struct {
	TopK                int  `json:"top_k"`
	IncludeTextFallback bool `json:"include_text_fallback"`
}

// DefaultWeights is the baseline weight distribution across signals.
func DefaultWeights() QueryWeights {
	return QueryWeights{
		TagsRoget:   0.25,
		Emotion:     0.15,
		Timestamp:   0.20,
		Personnes:   0.20,
		ResumeTexte: 0.20,
	}
}

// DefaultProfile is used whenever QueryProfile generation fails or is absent.
func DefaultProfile() QueryProfile {
	return QueryProfile{
		Intent:     "unknown",
		Confidence: 0,
		Weights:    DefaultWeights(),
		Filters:    QueryFilters{},
		Strategy:   QueryStrategy{TopK: 5, IncludeTextFallback: true},
	}
}
