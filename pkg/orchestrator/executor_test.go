package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
)

func TestStageFloor(t *testing.T) {
	assert.Equal(t, models.MatchStageExact, stageFloor(models.MatchingJobTypeExact))
	assert.Equal(t, models.MatchStageFuzzy, stageFloor(models.MatchingJobTypeFuzzy))
	assert.Equal(t, models.MatchStageAI, stageFloor(models.MatchingJobTypeAI))
	assert.Equal(t, models.MatchStageWebSearch, stageFloor(models.MatchingJobTypeWebSearch))

	// Supersession must not revisit items the web search stage already matched
	assert.Equal(t, models.MatchStageWebSearch+1, stageFloor(models.MatchingJobTypeSupersession))
}

func TestStageCursorFor(t *testing.T) {
	assert.Equal(t, models.ProjectStageExact, stageCursorFor(models.MatchingJobTypeExact))
	assert.Equal(t, models.ProjectStageFuzzy, stageCursorFor(models.MatchingJobTypeFuzzy))
	assert.Equal(t, models.ProjectStageAI, stageCursorFor(models.MatchingJobTypeAI))
	assert.Equal(t, models.ProjectStageWebSearch, stageCursorFor(models.MatchingJobTypeWebSearch))
	assert.Equal(t, models.ProjectStageWebSearch, stageCursorFor(models.MatchingJobTypeSupersession))
}

func TestIsPaid(t *testing.T) {
	assert.False(t, isPaid(models.MatchingJobTypeExact))
	assert.False(t, isPaid(models.MatchingJobTypeFuzzy))
	assert.True(t, isPaid(models.MatchingJobTypeAI))
	assert.True(t, isPaid(models.MatchingJobTypeWebSearch))
	assert.True(t, isPaid(models.MatchingJobTypeSupersession))
}

func TestEngineConfigFrom(t *testing.T) {
	cfg := config.Config{
		FuzzyPartThreshold:       0.72,
		CostRatioCheckEnabled:    false,
		SelectorMaxCandidates:    50,
		SelectorMinScore:         15,
		InterchangeFirstTieBreak: true,
	}

	engCfg := EngineConfigFrom(cfg)
	assert.Equal(t, 0.72, engCfg.FuzzyPartThreshold)
	assert.False(t, engCfg.CostRatioCheckEnabled)
	assert.Equal(t, 50, engCfg.SelectorMaxCandidates)
	assert.Equal(t, 15.0, engCfg.SelectorMinScore)
	assert.Equal(t, matching.TieBreakInterchangeFirst, engCfg.TieBreak)

	cfg.InterchangeFirstTieBreak = false
	assert.Equal(t, matching.TieBreakPrefixStrip, EngineConfigFrom(cfg).TieBreak)
}

func TestChunkSizePerJobType(t *testing.T) {
	e := &Executor{cfg: config.Config{
		ExactChunkSize:        500,
		FuzzyChunkSize:        200,
		AIChunkSize:           25,
		WebSearchChunkSize:    10,
		SupersessionChunkSize: 25,
	}}

	assert.Equal(t, 500, e.chunkSize(models.MatchingJobTypeExact))
	assert.Equal(t, 200, e.chunkSize(models.MatchingJobTypeFuzzy))
	assert.Equal(t, 25, e.chunkSize(models.MatchingJobTypeAI))
	assert.Equal(t, 10, e.chunkSize(models.MatchingJobTypeWebSearch))
	assert.Equal(t, 25, e.chunkSize(models.MatchingJobTypeSupersession))
}

func TestFilterBlockedPairs(t *testing.T) {
	sources := []models.CatalogItem{
		{ID: "src-1", PartNumberNorm: "BP1234"},
		{ID: "src-2", PartNumberNorm: "WH9"},
	}
	suppliers := []models.CatalogItem{
		{ID: "sup-1", PartNumberNorm: "BP1234"},
		{ID: "sup-2", PartNumberNorm: "WH9"},
	}
	rules := []models.MasterRule{
		{RuleType: models.MasterRuleTypeNegativeBlock, StorePartNorm: "BP1234", SupplierPartNorm: "BP1234"},
	}

	blockedTarget := "sup-1"
	allowedTarget := "sup-2"
	candidates := []*models.MatchCandidate{
		{SourceItemID: "src-1", TargetID: &blockedTarget, Method: models.MatchMethodExactNormalized},
		{SourceItemID: "src-2", TargetID: &allowedTarget, Method: models.MatchMethodFuzzy},
	}

	out := filterBlockedPairs(candidates, rules, sources, suppliers)
	assert.Len(t, out, 1)
	assert.Equal(t, "src-2", out[0].SourceItemID)
}

func TestFilterBlockedPairsIsPairScoped(t *testing.T) {
	sources := []models.CatalogItem{
		{ID: "src-aaa", PartNumberNorm: "AAA"},
		{ID: "src-bbb", PartNumberNorm: "BBB"},
	}
	suppliers := []models.CatalogItem{{ID: "sup-1", PartNumberNorm: "S1NORM"}}
	rules := []models.MasterRule{
		{RuleType: models.MasterRuleTypeNegativeBlock, StorePartNorm: "AAA", SupplierPartNorm: "S1NORM"},
	}

	target := "sup-1"
	candidates := []*models.MatchCandidate{
		{SourceItemID: "src-bbb", TargetID: &target, Method: models.MatchMethodFuzzy},
	}

	// The rule forbids (AAA, S1NORM) only; a different store part pairing
	// with the same supplier part must survive
	out := filterBlockedPairs(candidates, rules, sources, suppliers)
	assert.Len(t, out, 1)
	assert.Equal(t, "src-bbb", out[0].SourceItemID)

	blocked := []*models.MatchCandidate{
		{SourceItemID: "src-aaa", TargetID: &target, Method: models.MatchMethodFuzzy},
	}
	assert.Empty(t, filterBlockedPairs(blocked, rules, sources, suppliers))
}

func TestFilterBlockedPairsKeepsRuleMatches(t *testing.T) {
	sources := []models.CatalogItem{{ID: "src-1", PartNumberNorm: "BP1234"}}
	suppliers := []models.CatalogItem{{ID: "sup-1", PartNumberNorm: "BP1234"}}
	rules := []models.MasterRule{
		{RuleType: models.MasterRuleTypeNegativeBlock, StorePartNorm: "BP1234", SupplierPartNorm: "BP1234"},
	}

	target := "sup-1"
	candidates := []*models.MatchCandidate{
		{SourceItemID: "src-1", TargetID: &target, Method: models.MatchMethodMasterRule, Features: database.JSONB[models.MatchFeatures]{}},
	}

	// Positive rule outcomes survive even when a negative rule names the
	// exact same pair; the engine resolves rule conflicts, not the filter
	out := filterBlockedPairs(candidates, rules, sources, suppliers)
	assert.Len(t, out, 1)
}

func TestFilterBlockedPairsNoRules(t *testing.T) {
	target := "sup-1"
	candidates := []*models.MatchCandidate{
		{SourceItemID: "src-1", TargetID: &target},
	}
	out := filterBlockedPairs(candidates, nil, nil, nil)
	assert.Len(t, out, 1)
}
