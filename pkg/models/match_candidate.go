package models

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
)

// MatchMethod identifies which strategy produced a candidate
type MatchMethod string

const (
	MatchMethodMasterRule      MatchMethod = "master_rule"
	MatchMethodExactNormalized MatchMethod = "exact_normalized"
	MatchMethodInterchange     MatchMethod = "interchange"
	MatchMethodFuzzy           MatchMethod = "fuzzy"
	MatchMethodAI              MatchMethod = "ai"
	MatchMethodWebSearch       MatchMethod = "web_search"
	MatchMethodSupersession    MatchMethod = "supersession"
)

// MatchTargetType identifies what the candidate points at
type MatchTargetType string

const (
	MatchTargetSupplier        MatchTargetType = "supplier"
	MatchTargetInterchangeOnly MatchTargetType = "interchange_only"
)

// MatchCandidateStatus constants
const (
	MatchCandidateStatusPending   = "pending"
	MatchCandidateStatusConfirmed = "confirmed"
	MatchCandidateStatusRejected  = "rejected"
)

// Match stages, ordered by increasing cost
const (
	MatchStageMasterRule = 0
	MatchStageExact      = 1
	MatchStageFuzzy      = 2
	MatchStageAI         = 3
	MatchStageWebSearch  = 4
)

// MatchFeatures is the stage-specific explanation payload stored with each
// candidate so reviewers can see why the pair was proposed.
type MatchFeatures struct {
	ConfidenceTier    string  `json:"confidence_tier,omitempty"`
	PartSimilarity    float64 `json:"part_similarity,omitempty"`
	DescSimilarity    float64 `json:"desc_similarity,omitempty"`
	CombinedScore     float64 `json:"combined_score,omitempty"`
	CostRatio         float64 `json:"cost_ratio,omitempty"`
	CostRatioApplied  string  `json:"cost_ratio_applied,omitempty"`
	InterchangeVendor string  `json:"interchange_vendor,omitempty"`
	Strategy          string  `json:"strategy,omitempty"`
	Reasoning         string  `json:"reasoning,omitempty"`
	ModelConfidence   float64 `json:"model_confidence,omitempty"`
	SearchQuery       string  `json:"search_query,omitempty"`
	SearchResultCount int     `json:"search_result_count,omitempty"`
	ReplacementPart   string  `json:"replacement_part,omitempty"`
	RuleID            string  `json:"rule_id,omitempty"`
}

// MatchCandidate is a proposed (source item, supplier item) pairing. At most
// one confirmed candidate per source item is authoritative for export.
type MatchCandidate struct {
	ID           string                        `json:"id" db:"id"`
	TenantID     string                        `json:"tenant_id" db:"tenant_id"`
	ProjectID    string                        `json:"project_id" db:"project_id"`
	SourceItemID string                        `json:"source_item_id" db:"source_item_id"`
	TargetType   MatchTargetType               `json:"target_type" db:"target_type"`
	TargetID     *string                       `json:"target_id,omitempty" db:"target_id"`
	Method       MatchMethod                   `json:"method" db:"method"`
	MatchStage   int                           `json:"match_stage" db:"match_stage"`
	Confidence   float64                       `json:"confidence" db:"confidence"`
	Status       string                        `json:"status" db:"status"`
	Features     database.JSONB[MatchFeatures] `json:"features" db:"features"`
	CreatedAt    time.Time                     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time                     `json:"updated_at" db:"updated_at"`
	ResolvedAt   *time.Time                    `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy   *string                       `json:"resolved_by,omitempty" db:"resolved_by"`
}

// StageForMethod returns the match stage a method writes at
func StageForMethod(m MatchMethod) int {
	switch m {
	case MatchMethodMasterRule:
		return MatchStageMasterRule
	case MatchMethodExactNormalized, MatchMethodInterchange:
		return MatchStageExact
	case MatchMethodFuzzy:
		return MatchStageFuzzy
	case MatchMethodAI:
		return MatchStageAI
	default:
		return MatchStageWebSearch
	}
}
