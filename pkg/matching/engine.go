// Package matching implements the deterministic stages of the part matching
// pipeline: exact/interchange joins, trigram fuzzy scoring, and the candidate
// selector that bounds the paid stages.
package matching

// TieBreakPolicy selects how exact matching resolves competing joins
type TieBreakPolicy string

const (
	// TieBreakInterchangeFirst prefers interchange-bridged matches over
	// straight normalized joins for the same source item
	TieBreakInterchangeFirst TieBreakPolicy = "interchange_first"
	// TieBreakPrefixStrip retries the normalized join with the first three
	// characters stripped when the straight join finds nothing
	TieBreakPrefixStrip TieBreakPolicy = "prefix_strip"
)

// EngineConfig holds the tunables for the deterministic matching stages
type EngineConfig struct {
	// FuzzyPartThreshold is the minimum part-number trigram similarity
	FuzzyPartThreshold float64

	// FuzzyDescFloor is the minimum description similarity used as a
	// validation floor against short generic part numbers
	FuzzyDescFloor float64

	// MinPartLength skips fuzzy matching for part numbers shorter than this
	MinPartLength int

	// CostRatioCheckEnabled toggles the unit-of-measure cost sanity check
	CostRatioCheckEnabled bool

	// TieBreak selects the exact-match tie-break policy
	TieBreak TieBreakPolicy

	// SelectorMaxCandidates bounds the candidate set passed to paid stages
	SelectorMaxCandidates int

	// SelectorMinScore is the floor below which a candidate is not kept
	SelectorMinScore float64
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() EngineConfig {
	return EngineConfig{
		FuzzyPartThreshold:    0.65,
		FuzzyDescFloor:        0.15,
		MinPartLength:         3,
		CostRatioCheckEnabled: true,
		TieBreak:              TieBreakInterchangeFirst,
		SelectorMaxCandidates: 100,
		SelectorMinScore:      10,
	}
}

// Cost ratio validation constants. A ratio above the mismatch threshold is a
// unit-of-measure signal and halves confidence; a near-identical ratio boosts
// confidence slightly.
const (
	costRatioMismatchThreshold = 5.0
	costRatioBoostThreshold    = 1.05
	costRatioBoost             = 0.05
)

// applyCostRatio adjusts a confidence using the cost-ratio validation and
// returns the adjusted confidence, the ratio, and what was applied.
func applyCostRatio(confidence float64, sourceCost, supplierCost *float64) (float64, float64, string) {
	if sourceCost == nil || supplierCost == nil || *sourceCost <= 0 || *supplierCost <= 0 {
		return confidence, 0, ""
	}

	ratio := *sourceCost / *supplierCost
	if ratio < 1 {
		ratio = 1 / ratio
	}

	if ratio > costRatioMismatchThreshold {
		return confidence / 2, ratio, "halved"
	}
	if ratio < costRatioBoostThreshold {
		boosted := confidence + costRatioBoost
		if boosted > 1.0 {
			boosted = 1.0
		}
		return boosted, ratio, "boosted"
	}
	return confidence, ratio, ""
}
