package matching

import (
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// Part number vs description weights for the combined fuzzy score
const (
	fuzzyPartWeight = 0.7
	fuzzyDescWeight = 0.3
)

// FuzzyMatcher scores source items against supplier candidates with trigram
// similarity over normalized part numbers and descriptions.
type FuzzyMatcher struct {
	cfg    EngineConfig
	scorer *Scorer
}

// NewFuzzyMatcher creates a new fuzzy matcher
func NewFuzzyMatcher(cfg EngineConfig) *FuzzyMatcher {
	return &FuzzyMatcher{cfg: cfg, scorer: NewScorer()}
}

// BestMatch returns the single highest-scoring supplier candidate for a
// source item, or nil when nothing clears the thresholds. One candidate per
// source item is an invariant of this stage.
func (m *FuzzyMatcher) BestMatch(src *models.CatalogItem, candidates []models.CatalogItem) *models.MatchCandidate {
	if len(src.PartNumberNorm) < m.cfg.MinPartLength {
		return nil
	}

	srcDesc := normalizers.Description(src.Description)

	var best *models.CatalogItem
	var bestCombined, bestPart, bestDesc float64
	for i := range candidates {
		sup := &candidates[i]
		if sup.PartNumberNorm == "" {
			continue
		}

		partSim := m.scorer.Trigram(src.PartNumberNorm, sup.PartNumberNorm)
		if partSim < m.cfg.FuzzyPartThreshold {
			continue
		}

		descSim := m.scorer.Trigram(srcDesc, normalizers.Description(sup.Description))
		if descSim < m.cfg.FuzzyDescFloor {
			// Validation floor against short generic part numbers
			continue
		}

		combined := combinedFuzzyScore(partSim, descSim)
		if best == nil || combined > bestCombined || (combined == bestCombined && sup.ID < best.ID) {
			best = sup
			bestCombined = combined
			bestPart = partSim
			bestDesc = descSim
		}
	}

	if best == nil {
		return nil
	}

	targetID := best.ID
	return &models.MatchCandidate{
		TenantID:     src.TenantID,
		ProjectID:    src.ProjectID,
		SourceItemID: src.ID,
		TargetType:   models.MatchTargetSupplier,
		TargetID:     &targetID,
		Method:       models.MatchMethodFuzzy,
		MatchStage:   models.MatchStageFuzzy,
		Confidence:   fuzzyConfidenceBand(bestCombined),
		Status:       models.MatchCandidateStatusPending,
		Features: database.JSONB[models.MatchFeatures]{Data: models.MatchFeatures{
			PartSimilarity: bestPart,
			DescSimilarity: bestDesc,
			CombinedScore:  bestCombined,
		}},
	}
}

// combinedFuzzyScore blends part and description similarity. The description
// validates and can boost a match but never drags a strong part-number score
// below itself.
func combinedFuzzyScore(partSim, descSim float64) float64 {
	weighted := fuzzyPartWeight*partSim + fuzzyDescWeight*descSim
	if partSim > weighted {
		return partSim
	}
	return weighted
}

// fuzzyConfidenceBand maps a combined score to a confidence tier
func fuzzyConfidenceBand(score float64) float64 {
	switch {
	case score >= 0.90:
		return 0.95
	case score >= 0.85:
		return 0.90
	case score >= 0.80:
		return 0.85
	case score >= 0.75:
		return 0.80
	case score >= 0.70:
		return 0.75
	default:
		return 0.70
	}
}
