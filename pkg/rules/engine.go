// Package rules implements the master-rule stage that runs before any
// matcher, and the learning step that turns review decisions into rules.
package rules

import (
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Outcome is the result of applying the rule set to a chunk of source items
type Outcome struct {
	// Confirmed candidates created by positive rules
	Confirmed []*models.MatchCandidate
	// Blocked pairs whose existing candidates must be deleted
	Blocked []BlockedPair
	// AppliedRuleIDs lists every rule that fired, for usage accounting
	AppliedRuleIDs []string
}

// BlockedPair identifies a (source item, supplier item) pairing a negative
// rule forbids.
type BlockedPair struct {
	SourceItemID string
	TargetID     string
	RuleID       string
}

// Engine applies learned rules to source items before any matcher runs.
// Positive rules create confirmed candidates; negative rules suppress pairs
// every later stage would otherwise be free to propose.
type Engine struct {
	logger ectologger.Logger
}

// NewEngine creates a new rule engine
func NewEngine(logger ectologger.Logger) *Engine {
	return &Engine{logger: logger}
}

// Apply evaluates the rule set against a chunk of source items. existing
// maps source item IDs to their current candidate target IDs so positive
// rules skip pairs that already have a candidate.
func (e *Engine) Apply(rules []models.MasterRule, sources []models.CatalogItem, suppliers []models.CatalogItem, existing map[string]map[string]bool) Outcome {
	var out Outcome
	if len(rules) == 0 {
		return out
	}

	positive := make(map[string][]*models.MasterRule)
	negative := make(map[string][]*models.MasterRule)
	for i := range rules {
		r := &rules[i]
		switch r.RuleType {
		case models.MasterRuleTypePositiveMap:
			positive[r.StorePartNorm] = append(positive[r.StorePartNorm], r)
		case models.MasterRuleTypeNegativeBlock:
			negative[r.StorePartNorm] = append(negative[r.StorePartNorm], r)
		}
	}

	supplierIdx := make(map[string][]*models.CatalogItem, len(suppliers))
	for i := range suppliers {
		sup := &suppliers[i]
		if sup.PartNumberNorm != "" {
			supplierIdx[sup.PartNumberNorm] = append(supplierIdx[sup.PartNumberNorm], sup)
		}
	}

	applied := make(map[string]bool)
	for i := range sources {
		src := &sources[i]
		if src.PartNumberNorm == "" {
			continue
		}

		for _, rule := range negative[src.PartNumberNorm] {
			if !ruleCoversProject(rule, src.ProjectID) {
				continue
			}
			for _, sup := range supplierIdx[rule.SupplierPartNorm] {
				out.Blocked = append(out.Blocked, BlockedPair{
					SourceItemID: src.ID,
					TargetID:     sup.ID,
					RuleID:       rule.ID,
				})
				applied[rule.ID] = true
			}
		}

		// A positive rule confirms every supplier item it covers; overlapping
		// rules for the same source must not double-propose a pair
		emitted := make(map[string]bool)
		for _, rule := range positive[src.PartNumberNorm] {
			if !ruleCoversProject(rule, src.ProjectID) {
				continue
			}
			for _, sup := range supplierIdx[rule.SupplierPartNorm] {
				if existing[src.ID][sup.ID] || emitted[sup.ID] {
					continue
				}

				confidence := rule.Confidence
				if confidence <= 0 {
					confidence = 1.0
				}
				targetID := sup.ID
				out.Confirmed = append(out.Confirmed, &models.MatchCandidate{
					TenantID:     src.TenantID,
					ProjectID:    src.ProjectID,
					SourceItemID: src.ID,
					TargetType:   models.MatchTargetSupplier,
					TargetID:     &targetID,
					Method:       models.MatchMethodMasterRule,
					MatchStage:   models.MatchStageMasterRule,
					Confidence:   confidence,
					Status:       models.MatchCandidateStatusConfirmed,
					Features: database.JSONB[models.MatchFeatures]{Data: models.MatchFeatures{
						RuleID: rule.ID,
					}},
				})
				emitted[sup.ID] = true
				applied[rule.ID] = true
			}
		}
	}

	for id := range applied {
		out.AppliedRuleIDs = append(out.AppliedRuleIDs, id)
	}
	return out
}

func ruleCoversProject(rule *models.MasterRule, projectID string) bool {
	if rule.Scope == models.MasterRuleScopeGlobal {
		return true
	}
	return rule.ProjectID != nil && *rule.ProjectID == projectID
}
