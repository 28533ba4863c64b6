// Package vectorengine computes the sparse {position -> weight} vector for a
// segment, deterministically, from its flat fields and a loaded taxonomy.
// Positions 1-7 and 21-22 are direct scalar copies, 41-50 are locus
// keyword hits, 61-66 are taxonomy-driven super-classes, 67-78 are
// domain-theme keyword hits.
package vectorengine

import (
	"strings"

	"memoire/internal/models"
	"memoire/internal/taxonomy"
)

// internal scalar positions.
const (
	posEmotionValence    = 1
	posEmotionActivation = 2
	posPhysiqueEnergie   = 3
	posPhysiqueStress    = 4
	posCognitionCertitude  = 5
	posCognitionComplexite = 6
	posCognitionAbstraction = 7

	posCommClarte    = 21
	posCommFormalite = 22
)

// Row is the flat view of a segment the Vector Engine consumes, the same
// shape a metadata SQL row flattens into.
type Row struct {
	EmotionValence    float64
	EmotionActivation float64

	PhysiqueEnergie      *float64
	PhysiqueStress       *float64
	CognitionCertitude   *float64
	CognitionComplexite  *float64
	CognitionAbstraction *float64
	CommClarte           *float64
	CommFormalite        *float64

	TagsRoget   []string
	ResumeTexte string
	Personnes   []string
	Lieux       []string
	Projets     []string
	Sujets      []string
}

// RowFromSegment builds the Vector Engine's flat Row view from a Segment.
func RowFromSegment(s *models.Segment) Row {
	return Row{
		EmotionValence:    s.EmotionValence,
		EmotionActivation: s.EmotionActivation,
		TagsRoget:         s.TagsRoget,
		ResumeTexte:       s.ResumeTexte,
		Personnes:         s.Personnes,
		Lieux:             s.Lieux,
		Projets:           s.Projets,
		Sujets:            s.Sujets,
	}
}

// locusKeywords detects positions 41-50 (locus & social) by case-insensitive
// substring match against the segment's lieux text.
var locusKeywords = map[int][]string{
	41: {"maison", "home", "appart", "domicile", "chez moi", "chambre", "cuisine", "salon", "appartement", "résidence"},
	42: {"bureau", "office", "travail", "boulot", "entreprise", "réunion", "workspace", "job", "company", "meeting room"},
	43: {"voiture", "auto", "bus", "métro", "train", "avion", "transport", "car", "subway", "plane", "commute", "trajet"},
	44: {"café", "restaurant", "magasin", "centre", "public", "ville", "shop", "store", "mall", "downtown", "city"},
	45: {"parc", "forêt", "montagne", "plage", "nature", "jardin", "extérieur", "park", "forest", "beach", "outdoor"},
	46: {"hôpital", "clinique", "médecin", "dentiste", "pharmacie", "soin", "hospital", "clinic", "doctor", "pharmacy"},
	47: {"seul", "alone", "solo", "solitaire"},
	48: {"famille", "ami", "proche", "ensemble", "family", "friend", "together"},
	49: {"collègue", "client", "professionnel", "colleague", "professional"},
	50: {"foule", "public", "événement", "crowd", "event", "gathering"},
}

// themeKeywords detects positions 67-78 (domain themes). This is the base
// seed set; New enriches it further at load time by matching taxonomy
// keywords against theme triggers.
var themeKeywordsBase = map[int][]string{
	67: {"santé", "médecin", "maladie", "sport", "douleur", "fatigue", "sommeil", "gym", "exercice", "hôpital", "symptôme", "traitement", "health", "doctor"},
	68: {"argent", "facture", "salaire", "achat", "prix", "banque", "paiement", "budget", "économie", "finance", "money", "cost", "payment", "invoice"},
	69: {"code", "programmation", "sql", "python", "api", "bug", "logiciel", "ordi", "tech", "ia", "algorithm", "software", "database", "server"},
	70: {"famille", "enfant", "parent", "frère", "sœur", "conjoint", "mariage", "bébé", "fils", "fille", "family", "child", "wife", "husband"},
	71: {"manger", "repas", "cuisine", "restaurant", "recette", "nourriture", "dîner", "déjeuner", "food", "meal", "cook", "eat", "drink"},
	72: {"carrière", "promotion", "emploi", "cv", "entrevue", "patron", "collègue", "projet", "réunion", "deadline", "job", "work", "career", "meeting"},
	73: {"jeu", "musique", "film", "livre", "guitare", "art", "loisir", "détente", "vacances", "hobby", "game", "music", "movie", "book", "relax"},
	74: {"cours", "étude", "université", "examen", "prof", "étudiant", "recherche", "thèse", "diplôme", "school", "study", "university", "student", "exam"},
	75: {"voyage", "avion", "hôtel", "tourisme", "destination", "valise", "passeport", "travel", "trip", "flight", "vacation"},
	76: {"loi", "juridique", "avocat", "procès", "contrat", "droit", "légal", "law", "legal", "lawyer", "court", "contract"},
	77: {"environnement", "climat", "écologie", "pollution", "nature", "vert", "environment", "climate", "ecology", "green", "sustainable"},
	78: {"politique", "gouvernement", "élection", "parti", "vote", "ministre", "politics", "government", "election", "vote", "policy"},
}

// themeTriggers enrich theme keyword sets with taxonomy keywords that match
// one of these English/French trigger words.
var themeTriggers = map[int][]string{
	67: {"health", "santé", "medical", "medicine", "disease", "illness", "body", "corps", "pain", "douleur", "healing"},
	68: {"money", "argent", "wealth", "richesse", "payment", "paiement", "commerce", "trade", "property", "propriété", "finance"},
	69: {"computer", "ordinateur", "digital", "numérique", "software", "machine", "technology", "technologie", "code", "algorithm"},
	70: {"family", "famille", "kinship", "parenté", "marriage", "mariage", "child", "enfant", "parent", "domestic"},
	71: {"food", "nourriture", "eating", "manger", "drink", "boire", "nutrition", "meal", "repas", "taste", "goût"},
	72: {"work", "travail", "business", "affaires", "occupation", "métier", "profession", "career", "carrière", "job", "emploi"},
	73: {"play", "jeu", "leisure", "loisir", "amusement", "entertainment", "music", "musique", "art", "recreation", "sport"},
	74: {"education", "éducation", "learning", "apprentissage", "school", "école", "teaching", "enseignement", "study", "étude"},
	75: {"travel", "voyage", "journey", "trajet", "destination", "tourism", "tourisme", "foreign", "étranger"},
}

// Engine computes sparse vectors from segment rows and a loaded taxonomy.
type Engine struct {
	tax             *taxonomy.Index
	themeKeywords   map[int]map[string]struct{}
}

// New builds an Engine, enriching the base theme keyword sets with any
// taxonomy keyword that matches a theme trigger word.
func New(tax *taxonomy.Index) *Engine {
	e := &Engine{tax: tax, themeKeywords: map[int]map[string]struct{}{}}
	for pos, words := range themeKeywordsBase {
		set := map[string]struct{}{}
		for _, w := range words {
			set[strings.ToLower(w)] = struct{}{}
		}
		e.themeKeywords[pos] = set
	}
	e.enrichThemesFromTaxonomy()
	return e
}

func (e *Engine) enrichThemesFromTaxonomy() {
	if e.tax == nil {
		return
	}
	for _, pos := range e.tax.Positions() {
		for kw := range e.tax.Keywords(pos) {
			for themePos, triggers := range themeTriggers {
				for _, trigger := range triggers {
					if strings.Contains(kw, trigger) {
						e.themeKeywords[themePos][kw] = struct{}{}
					}
				}
			}
		}
	}
}

// Generate produces the sparse vector for one row. Pure function of
// (row, loaded taxonomy): same input always yields the same output.
func (e *Engine) Generate(row Row) models.Vector {
	v := models.Vector{}

	setScalar(v, posEmotionValence, row.EmotionValence)
	setScalar(v, posEmotionActivation, row.EmotionActivation)
	setScalarPtr(v, posPhysiqueEnergie, row.PhysiqueEnergie)
	setScalarPtr(v, posPhysiqueStress, row.PhysiqueStress)
	setScalarPtr(v, posCognitionCertitude, row.CognitionCertitude)
	setScalarPtr(v, posCognitionComplexite, row.CognitionComplexite)
	setScalarPtr(v, posCognitionAbstraction, row.CognitionAbstraction)
	setScalarPtr(v, posCommClarte, row.CommClarte)
	setScalarPtr(v, posCommFormalite, row.CommFormalite)

	lieux := strings.ToLower(strings.Join(row.Lieux, " "))
	for pos, keywords := range locusKeywords {
		if containsAny(lieux, keywords) {
			v[pos] = 1.0
		}
	}

	bag := bagOfWords(row)
	wordCount := len(strings.Fields(bag))
	threshold := 3.0
	if wordCount < 20 {
		threshold = 1.0
	}

	if e.tax != nil {
		for _, pos := range e.tax.Positions() {
			keywords := e.tax.Keywords(pos)
			if len(keywords) == 0 {
				continue
			}
			score := 0
			for kw := range keywords {
				if strings.Contains(bag, kw) {
					score++
				}
			}
			if score > 0 {
				v[pos] = minF(1.0, float64(score)/threshold)
			}
		}
	}

	for pos, keywords := range e.themeKeywords {
		for kw := range keywords {
			if strings.Contains(bag, kw) {
				v[pos] = 1.0
				break
			}
		}
	}

	e.applyExplicitTags(row.TagsRoget, v)

	return v
}

func (e *Engine) applyExplicitTags(tags []string, v models.Vector) {
	if e.tax == nil {
		return
	}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		pos, ok := e.tax.PositionForTag(tag)
		if !ok {
			continue
		}
		if current, has := v[pos]; !has || 0.8 > current {
			v[pos] = 0.8
		}
	}
}

func bagOfWords(row Row) string {
	parts := make([]string, 0, 6)
	parts = append(parts, strings.Join(row.TagsRoget, " "))
	parts = append(parts, row.ResumeTexte)
	parts = append(parts, strings.Join(row.Personnes, " "))
	parts = append(parts, strings.Join(row.Lieux, " "))
	parts = append(parts, strings.Join(row.Projets, " "))
	parts = append(parts, strings.Join(row.Sujets, " "))
	return strings.ToLower(strings.Join(parts, " "))
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func setScalar(v models.Vector, pos int, val float64) {
	if val != 0 {
		v[pos] = val
	}
}

func setScalarPtr(v models.Vector, pos int, val *float64) {
	if val != nil && *val != 0 {
		v[pos] = *val
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
