package matching

import (
	"sort"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Selector score weights
const (
	selectorLineCodeScore    = 100.0
	selectorContainmentScore = 50.0
	selectorEditMaxScore     = 40.0
	selectorKeywordScore     = 5.0
	selectorCostMaxScore     = 20.0
)

// ScoredCandidate is a supplier item with its selector score
type ScoredCandidate struct {
	Item  *models.CatalogItem
	Score float64
}

// Selector pre-filters the supplier catalog to a small, high-likelihood
// candidate set per source item so the paid stages stay bounded.
type Selector struct {
	cfg    EngineConfig
	scorer *Scorer
}

// NewSelector creates a new candidate selector
func NewSelector(cfg EngineConfig) *Selector {
	return &Selector{cfg: cfg, scorer: NewScorer()}
}

// Select scores every supplier item against the source item and keeps the
// top candidates above the minimum score. An empty result means the item is
// not worth a paid call.
func (s *Selector) Select(src *models.CatalogItem, suppliers []models.CatalogItem) []ScoredCandidate {
	var scored []ScoredCandidate
	for i := range suppliers {
		sup := &suppliers[i]
		score := s.Score(src, sup)
		if score < s.cfg.SelectorMinScore {
			continue
		}
		scored = append(scored, ScoredCandidate{Item: sup, Score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Item.ID < scored[j].Item.ID
	})

	if len(scored) > s.cfg.SelectorMaxCandidates {
		scored = scored[:s.cfg.SelectorMaxCandidates]
	}
	return scored
}

// Score computes the weighted likelihood score for one pairing
func (s *Selector) Score(src, sup *models.CatalogItem) float64 {
	score := 0.0

	if srcLine := lineCodeOf(src); srcLine != "" && srcLine == lineCodeOf(sup) {
		score += selectorLineCodeScore
	}

	srcPart := src.PartNumberNorm
	supPart := sup.PartNumberNorm
	if srcPart != "" && supPart != "" {
		if strings.Contains(supPart, srcPart) || strings.Contains(srcPart, supPart) {
			score += selectorContainmentScore
		} else {
			score += selectorEditMaxScore * s.scorer.Levenshtein(srcPart, supPart)
		}
	}

	score += selectorKeywordScore * float64(SharedKeywords(src.Description, sup.Description))

	if src.Cost != nil && sup.Cost != nil {
		score += selectorCostMaxScore * s.scorer.CostProximity(*src.Cost, *sup.Cost, 3.0)
	}

	return score
}
