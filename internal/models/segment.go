// Package models holds the domain records shared across the memory engine:
// segments, edges, piliers, candidate entities, query profiles and mandates.
package models

import "time"

// Author identifies who produced a segment.
type Author string

const (
	AuthorHuman        Author = "human"
	AuthorAssistant    Author = "assistant"
	AuthorIrisInternal Author = "iris_internal"
)

// TruthStatus records whether a segment's content has been confirmed, refuted
// or left unassessed by the Coherence Agent.
type TruthStatus int

const (
	TruthRefuted   TruthStatus = -1
	TruthUnknown   TruthStatus = 0
	TruthValidated TruthStatus = 1
)

// Vector is a sparse position->weight map. Positions 1-~80 are reserved by
// the Vector Engine's fixed layout; encoding/json marshals int keys as
// decimal strings and back, so JSON round-trips exactly.
type Vector map[int]float64

// Segment is one row of the metadata table: the central entity of the
// memory engine.
type Segment struct {
	ID        int64
	Timestamp time.Time
	// TimestampEpoch mirrors Timestamp in whole seconds; kept as its own
	// field because the store persists it as a separate column that must
	// stay consistent with Timestamp.
	TimestampEpoch int64
	TokenStart     int
	TokenEnd       int

	SourceFile    string
	SourceNature  string
	SourceFormat  string
	SourceOrigine string
	Auteur        Author

	EmotionValence    float64
	EmotionActivation float64

	TagsRoget []string

	Personnes []string
	Projets   []string
	Sujets    []string
	Lieux     []string

	ResumeTexte string

	GrID *int64

	ConfidenceScore float64
	StatutVerite    TruthStatus

	Vecteur Vector

	ExtractorVersion string
	Modele           string
	CreatedAt        time.Time
}

// FirstTag returns the segment's primary tag, or "" if it has none.
// tags_roget[0] is always well-formed if the list is non-empty.
func (s *Segment) FirstTag() string {
	if len(s.TagsRoget) == 0 {
		return ""
	}
	return s.TagsRoget[0]
}

// EdgeType enumerates the directed relations stored in the edges table.
type EdgeType string

const (
	EdgeCorrigePar   EdgeType = "CORRIGE_PAR"
	EdgeTrajectoire  EdgeType = "TRAJECTOIRE"
	EdgeGenealogie   EdgeType = "GENEALOGIE"
	EdgeEvolueVers   EdgeType = "EVOLUE_VERS"
	EdgeMemeGroupe   EdgeType = "MEME_GROUPE"
	EdgeTagsPartages EdgeType = "TAGS_PARTAGES"
)

// Edge is a directed, typed link between two segments.
type Edge struct {
	ID        int64
	SourceID  int64
	TargetID  int64
	Type      EdgeType
	Metadata  string // JSON blob, opaque to the store
	Weight    float64
	CreatedAt time.Time
}

// PilierCategory enumerates the long-lived fact categories.
type PilierCategory string

const (
	PilierIdentite  PilierCategory = "IDENTITE"
	PilierRecherche PilierCategory = "RECHERCHE"
	PilierTechnique PilierCategory = "TECHNIQUE"
	PilierRelation  PilierCategory = "RELATION"
	PilierValeur    PilierCategory = "VALEUR"
	PilierFait      PilierCategory = "FAIT"
)

// Pilier is a consolidated long-lived fact elevated from ephemeral memory.
type Pilier struct {
	ID          int64
	Category    PilierCategory
	Importance  int // clamped to {0,1,2,3}
	Fact        string
	SourceID    *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ClampImportance clamps p.Importance into the valid {0,1,2,3} range.
func (p *Pilier) ClampImportance() {
	if p.Importance < 0 {
		p.Importance = 0
	}
	if p.Importance > 3 {
		p.Importance = 3
	}
}

// CandidateKind distinguishes the two candidate-entity tables.
type CandidateKind string

const (
	CandidatePersonne CandidateKind = "personne"
	CandidateProjet   CandidateKind = "projet"
)

// Candidate is a proposed named entity not yet confirmed, pointing back to
// the segment that introduced it.
type Candidate struct {
	ID        int64
	Kind      CandidateKind
	Nom       string
	SegmentID int64
	Contexte  string
	CreatedAt time.Time
}
