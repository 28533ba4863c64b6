package models

// ExtractorRecord is the structured output an Extractor backend returns for
// one segment. confidence_score == 0.5 is the universal "extraction failed,
// defaults filled in" sentinel.
type ExtractorRecord struct {
	Indexable bool

	EmotionValence    float64
	EmotionActivation float64

	// Optional cognitive/communication scalars. nil means "not provided" —
	// the Vector Engine treats a nil pointer exactly like a zero value for
	// positions 1-22.
	PhysiqueEnergie     *float64
	PhysiqueStress      *float64
	CognitionCertitude  *float64
	CognitionComplexite *float64
	CognitionAbstraction *float64
	CommClarte          *float64
	CommFormalite        *float64

	TagsRoget []string

	Personnes []string
	Projets   []string
	Sujets    []string
	Lieux     []string

	ResumeTexte string
	MotsCles    []string

	GrID *int64

	ConfidenceScore float64

	PersonneCandidat string
	ProjetCandidat   string
}

// DefaultTag is substituted when extraction fails and tags_roget would
// otherwise be empty.
const DefaultTag = "04-0110-0010"

// FailureSentinelConfidence is the confidence value that marks an
// extraction as failed ("didn't actually extract").
const FailureSentinelConfidence = 0.5

// FailedRecord builds the fallback record used when every repair stage in
// the extractor backend has been exhausted.
func FailedRecord(lastKnownGood *ExtractorRecord) ExtractorRecord {
	if lastKnownGood == nil {
		return ExtractorRecord{
			Indexable:       true,
			TagsRoget:       []string{DefaultTag},
			ResumeTexte:     "[extraction failed]",
			ConfidenceScore: FailureSentinelConfidence,
		}
	}
	overlay := *lastKnownGood
	overlay.ResumeTexte = "[extraction failed]"
	overlay.ConfidenceScore = FailureSentinelConfidence
	return overlay
}
