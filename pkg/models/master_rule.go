package models

import "time"

// MasterRuleType defines how a rule affects candidates
type MasterRuleType string

const (
	// MasterRuleTypePositiveMap creates confirmed candidates directly
	MasterRuleTypePositiveMap MasterRuleType = "positive_map"
	// MasterRuleTypeNegativeBlock deletes candidates for the blocked pair
	MasterRuleTypeNegativeBlock MasterRuleType = "negative_block"
)

// MasterRuleScope constants
type MasterRuleScope string

const (
	MasterRuleScopeGlobal  MasterRuleScope = "global"
	MasterRuleScopeProject MasterRuleScope = "project"
)

// MasterRule is a learned mapping between a store part number and a supplier
// part number. Rules are produced by the review learning step and applied as
// stage 0 on every matching invocation, overriding all other stages.
type MasterRule struct {
	ID               string          `json:"id" db:"id"`
	TenantID         string          `json:"tenant_id" db:"tenant_id"`
	RuleType         MasterRuleType  `json:"rule_type" db:"rule_type"`
	StorePartNorm    string          `json:"store_part_norm" db:"store_part_norm"`
	SupplierPartNorm string          `json:"supplier_part_norm" db:"supplier_part_norm"`
	Scope            MasterRuleScope `json:"scope" db:"scope"`
	ProjectID        *string         `json:"project_id,omitempty" db:"project_id"`
	Confidence       float64         `json:"confidence" db:"confidence"`
	TimesApplied     int             `json:"times_applied" db:"times_applied"`
	CreatedBy        *string         `json:"created_by,omitempty" db:"created_by"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// ReviewDecision is a human judgement on a match candidate, delivered one at
// a time from the review UI or in bulk via CSV import.
type ReviewDecision struct {
	CandidateID       string `json:"candidate_id"`
	Decision          string `json:"decision"` // approve, reject, correct
	CorrectedTargetID string `json:"corrected_target_id,omitempty"`
	ReviewedBy        string `json:"reviewed_by,omitempty"`
}

// ReviewDecision values
const (
	ReviewDecisionApprove = "approve"
	ReviewDecisionReject  = "reject"
	ReviewDecisionCorrect = "correct"
)

// CreateMasterRuleRequest is the request to create a rule by hand
type CreateMasterRuleRequest struct {
	RuleType           MasterRuleType  `json:"rule_type" validate:"required,oneof=positive_map negative_block"`
	StorePartNumber    string          `json:"store_part_number" validate:"required"`
	SupplierPartNumber string          `json:"supplier_part_number" validate:"required"`
	Scope              MasterRuleScope `json:"scope" validate:"required,oneof=global project"`
	ProjectID          *string         `json:"project_id,omitempty"`
	Confidence         float64         `json:"confidence"`
}
