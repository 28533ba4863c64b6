package coherence

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"memoire/internal/models"
	"memoire/internal/sbire"
)

// ReflexionResult is the outcome of one Phase B pass.
type ReflexionResult struct {
	TrajectoiresDetected int
	LinksCreated         int
	PiliersProposed      int
	Trajectoires         []models.Trajectoire
	Piliers              []models.PilierPropose
	Errors               []string
}

// Reflexion weaves evolutions of thought (not errors) into typed edges and
// proposes long-lived facts worth consolidating into piliers.
type Reflexion struct {
	cfg Config
	sb  *sbire.Sbire
	llm LLM
	log *logrus.Logger
}

// NewReflexion builds the Phase B module.
func NewReflexion(cfg Config, sb *sbire.Sbire, llm LLM, log *logrus.Logger) *Reflexion {
	return &Reflexion{cfg: cfg, sb: sb, llm: llm, log: log}
}

// Process detects trajectories, weaves the edges it can confirm, and
// proposes piliers from the same material.
func (rf *Reflexion) Process(ctx context.Context, content string) ReflexionResult {
	result := ReflexionResult{}

	trajectoires := rf.detectTrajectoires(ctx, content, &result)
	result.TrajectoiresDetected = len(trajectoires)
	result.Trajectoires = trajectoires

	if len(trajectoires) > 0 {
		rf.weaveTrajectoires(ctx, trajectoires, &result)
	}

	piliers := rf.proposePiliers(ctx, content, trajectoires, &result)
	result.PiliersProposed = len(piliers)
	result.Piliers = piliers

	return result
}

const reflexionSystemPrompt = `Tu es Mnémosyne, l'agent de cohérence mémorielle.

MISSION: Détecter les ÉVOLUTIONS DE PENSÉE (pas les erreurs).

Une évolution = changement d'approche, de technologie, de décision:
- "On utilisait X, maintenant on fait Y" -> TRAJECTOIRE
- "Le projet a évolué de A vers B" -> GENEALOGIE
- "Avant on pensait X, maintenant on sait que Y" -> EVOLUE_VERS

IMPORTANT:
- Évolution != Erreur
- Une évolution est un changement VALIDE de perspective
- On ne "corrige" pas, on "évolue"

Réponds UNIQUEMENT en JSON valide:
{"trajectoires": [{"ancien_concept": "...", "nouveau_concept": "...", "type": "TRAJECTOIRE|GENEALOGIE|EVOLUE_VERS", "description": "...", "confidence": 0.0-1.0}]}

Si AUCUNE évolution: {"trajectoires": []}`

type wireTrajectoire struct {
	AncienConcept  string `json:"ancien_concept"`
	NouveauConcept string `json:"nouveau_concept"`
	Type           string `json:"type"`
	Description    string `json:"description"`
}

func (rf *Reflexion) detectTrajectoires(ctx context.Context, content string, result *ReflexionResult) []models.Trajectoire {
	if len(content) < 500 || rf.llm == nil {
		return nil
	}

	truncated := content
	if len(truncated) > 6000 {
		truncated = truncated[:6000]
	}
	prompt := reflexionSystemPrompt + "\n\nAnalyse ce texte:\n\n" + truncated

	raw, err := rf.llm.Complete(ctx, prompt)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("llm trajectoires: %v", err))
		return nil
	}

	var parsed struct {
		Trajectoires []wireTrajectoire `json:"trajectoires"`
	}
	if err := decodeObject(raw, &parsed); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("llm trajectoires parse: %v", err))
		return nil
	}

	var out []models.Trajectoire
	for _, t := range parsed.Trajectoires {
		if t.AncienConcept == "" || t.NouveauConcept == "" {
			continue
		}
		out = append(out, models.Trajectoire{
			Ancien:  t.AncienConcept,
			Nouveau: t.NouveauConcept,
			Type:    normalizeEvolutionType(t.Type),
		})
	}
	return out
}

func normalizeEvolutionType(t string) models.EdgeType {
	switch strings.ToUpper(t) {
	case string(models.EdgeGenealogie):
		return models.EdgeGenealogie
	case string(models.EdgeEvolueVers):
		return models.EdgeEvolueVers
	default:
		return models.EdgeTrajectoire
	}
}

func (rf *Reflexion) weaveTrajectoires(ctx context.Context, trajectoires []models.Trajectoire, result *ReflexionResult) {
	for _, traj := range trajectoires {
		ancienHits := rf.searchConcept(ctx, traj.Ancien)
		nouveauHits := rf.searchConcept(ctx, traj.Nouveau)
		if len(ancienHits) == 0 || len(nouveauHits) == 0 {
			continue
		}

		sourceID := ancienHits[0].SegmentID
		targetID := nouveauHits[0].SegmentID
		if sourceID == 0 || targetID == 0 || sourceID == targetID {
			continue
		}

		if rf.cfg.DryRun {
			rf.log.WithFields(logrus.Fields{"source": sourceID, "target": targetID, "type": traj.Type}).
				Debug("coherence: [dry-run] would link trajectoire")
			continue
		}

		meta := fmt.Sprintf(`{"description":%q,"source":"mnemosyne_reflexion"}`, truncate(traj.Nouveau, 200))
		if rf.sb.InsertEdge(ctx, sourceID, targetID, traj.Type, meta, 1.0) {
			result.LinksCreated++
		}
	}
}

// searchConcept looks a concept up via WORD2VEC first (semantic expansion),
// falling back to a plain SQL mandate when expansion turns up nothing.
func (rf *Reflexion) searchConcept(ctx context.Context, concept string) []models.SearchHit {
	hits := rf.sb.Execute(ctx, models.Mandat{Type: models.MandatWord2Vec, Query: concept, MaxResults: 10})
	if len(hits) > 0 {
		return hits
	}

	query := concept
	if fields := strings.Fields(concept); len(fields) > 0 {
		query = fields[0]
	}
	return rf.sb.Execute(ctx, models.Mandat{Type: models.MandatSQL, Query: query, MaxResults: 10})
}

const pilierSystemPrompt = `Tu es Mnémosyne, l'agent de cohérence mémorielle.

MISSION: Identifier les FAITS IMPORTANTS qui méritent d'être des PILIERS.

Un pilier = vérité stable, importante, à retenir absolument:
- Décisions définitives
- Faits biographiques
- Choix techniques consolidés
- Dates importantes

Catégories: IDENTITE, RECHERCHE, TECHNIQUE, RELATION, VALEUR, FAIT

Réponds UNIQUEMENT en JSON valide:
{"piliers": [{"fait": "...", "categorie": "IDENTITE|RECHERCHE|TECHNIQUE|RELATION|VALEUR|FAIT", "importance": 1-3, "raison": "..."}]}

Si AUCUN pilier à proposer: {"piliers": []}`

type wirePilier struct {
	Fait       string `json:"fait"`
	Categorie  string `json:"categorie"`
	Importance int    `json:"importance"`
}

func (rf *Reflexion) proposePiliers(ctx context.Context, content string, trajectoires []models.Trajectoire, result *ReflexionResult) []models.PilierPropose {
	if len(content) < 1000 || rf.llm == nil {
		return nil
	}

	var trajContext strings.Builder
	if len(trajectoires) > 0 {
		trajContext.WriteString("\n\nTrajectoires détectées:\n")
		max := len(trajectoires)
		if max > 5 {
			max = 5
		}
		for _, t := range trajectoires[:max] {
			fmt.Fprintf(&trajContext, "- %s -> %s\n", t.Ancien, t.Nouveau)
		}
	}

	truncated := content
	if len(truncated) > 5000 {
		truncated = truncated[:5000]
	}
	prompt := pilierSystemPrompt + "\n\nAnalyse ce texte:" + trajContext.String() + "\n\n" + truncated

	raw, err := rf.llm.Complete(ctx, prompt)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("llm piliers: %v", err))
		return nil
	}

	var parsed struct {
		Piliers []wirePilier `json:"piliers"`
	}
	if err := decodeObject(raw, &parsed); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("llm piliers parse: %v", err))
		return nil
	}

	var out []models.PilierPropose
	for _, p := range parsed.Piliers {
		if p.Fait == "" {
			continue
		}
		importance := p.Importance
		if importance < 1 {
			importance = 1
		}
		if importance > 3 {
			importance = 3
		}
		proposal := models.PilierPropose{
			Fact:       p.Fait,
			Category:   normalizePilierCategory(p.Categorie),
			Importance: importance,
		}
		out = append(out, proposal)

		if rf.cfg.DryRun {
			rf.log.WithField("fact", truncate(proposal.Fact, 50)).Debug("coherence: [dry-run] would create pilier")
			continue
		}
		rf.sb.InsertPilier(ctx, proposal.Fact, proposal.Category, proposal.Importance, nil)
	}
	return out
}

func normalizePilierCategory(c string) models.PilierCategory {
	switch strings.ToUpper(c) {
	case string(models.PilierIdentite):
		return models.PilierIdentite
	case string(models.PilierRecherche):
		return models.PilierRecherche
	case string(models.PilierTechnique):
		return models.PilierTechnique
	case string(models.PilierRelation):
		return models.PilierRelation
	case string(models.PilierValeur):
		return models.PilierValeur
	default:
		return models.PilierFait
	}
}
