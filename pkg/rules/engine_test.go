package rules

import (
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func strPtr(s string) *string { return &s }

func source(id, norm string) models.CatalogItem {
	return models.CatalogItem{
		ID: id, TenantID: "t1", ProjectID: "p1",
		Role: models.CatalogItemRoleSource, PartNumber: norm, PartNumberNorm: norm,
	}
}

func supplier(id, norm string) models.CatalogItem {
	return models.CatalogItem{
		ID: id, TenantID: "t1", ProjectID: "p1",
		Role: models.CatalogItemRoleSupplier, PartNumber: norm, PartNumberNorm: norm,
	}
}

func positiveRule(id, store, sup string) models.MasterRule {
	return models.MasterRule{
		ID: id, TenantID: "t1", RuleType: models.MasterRuleTypePositiveMap,
		StorePartNorm: store, SupplierPartNorm: sup,
		Scope: models.MasterRuleScopeGlobal, Confidence: 1.0,
	}
}

func negativeRule(id, store, sup string) models.MasterRule {
	return models.MasterRule{
		ID: id, TenantID: "t1", RuleType: models.MasterRuleTypeNegativeBlock,
		StorePartNorm: store, SupplierPartNorm: sup,
		Scope: models.MasterRuleScopeGlobal,
	}
}

func TestEngine_PositiveRuleCreatesConfirmedCandidate(t *testing.T) {
	e := NewEngine(testLogger())

	out := e.Apply(
		[]models.MasterRule{positiveRule("r1", "AB123", "XY99")},
		[]models.CatalogItem{source("s1", "AB123")},
		[]models.CatalogItem{supplier("u1", "XY99")},
		nil,
	)

	require.Len(t, out.Confirmed, 1)
	c := out.Confirmed[0]
	assert.Equal(t, models.MatchMethodMasterRule, c.Method)
	assert.Equal(t, models.MatchStageMasterRule, c.MatchStage)
	assert.Equal(t, models.MatchCandidateStatusConfirmed, c.Status)
	assert.Equal(t, 1.0, c.Confidence)
	assert.Equal(t, "r1", c.Features.Data.RuleID)
	assert.Equal(t, []string{"r1"}, out.AppliedRuleIDs)
}

func TestEngine_PositiveRuleSkipsExistingPair(t *testing.T) {
	e := NewEngine(testLogger())

	existing := map[string]map[string]bool{"s1": {"u1": true}}
	out := e.Apply(
		[]models.MasterRule{positiveRule("r1", "AB123", "XY99")},
		[]models.CatalogItem{source("s1", "AB123")},
		[]models.CatalogItem{supplier("u1", "XY99")},
		existing,
	)

	assert.Empty(t, out.Confirmed)
	assert.Empty(t, out.AppliedRuleIDs)
}

func TestEngine_NegativeRuleBlocksPair(t *testing.T) {
	e := NewEngine(testLogger())

	out := e.Apply(
		[]models.MasterRule{negativeRule("r1", "AB123", "XY99")},
		[]models.CatalogItem{source("s1", "AB123")},
		[]models.CatalogItem{supplier("u1", "XY99"), supplier("u2", "XY99")},
		nil,
	)

	require.Len(t, out.Blocked, 2)
	assert.Equal(t, "s1", out.Blocked[0].SourceItemID)
	assert.Equal(t, "r1", out.Blocked[0].RuleID)
}

func TestEngine_ProjectScopedRuleOnlyAppliesToItsProject(t *testing.T) {
	e := NewEngine(testLogger())

	rule := positiveRule("r1", "AB123", "XY99")
	rule.Scope = models.MasterRuleScopeProject
	rule.ProjectID = strPtr("other-project")

	out := e.Apply(
		[]models.MasterRule{rule},
		[]models.CatalogItem{source("s1", "AB123")},
		[]models.CatalogItem{supplier("u1", "XY99")},
		nil,
	)
	assert.Empty(t, out.Confirmed)

	rule.ProjectID = strPtr("p1")
	out = e.Apply(
		[]models.MasterRule{rule},
		[]models.CatalogItem{source("s1", "AB123")},
		[]models.CatalogItem{supplier("u1", "XY99")},
		nil,
	)
	assert.Len(t, out.Confirmed, 1)
}

func TestEngine_PositiveRuleConfirmsEveryCoveredSupplier(t *testing.T) {
	e := NewEngine(testLogger())

	out := e.Apply(
		[]models.MasterRule{positiveRule("r1", "AB123", "XY99")},
		[]models.CatalogItem{source("s1", "AB123")},
		[]models.CatalogItem{supplier("u9", "XY99"), supplier("u1", "XY99")},
		nil,
	)

	require.Len(t, out.Confirmed, 2)
	targets := []string{*out.Confirmed[0].TargetID, *out.Confirmed[1].TargetID}
	assert.ElementsMatch(t, []string{"u1", "u9"}, targets)
}

func TestEngine_AllApplicableRulesFire(t *testing.T) {
	e := NewEngine(testLogger())

	out := e.Apply(
		[]models.MasterRule{
			positiveRule("r1", "AB123", "XY99"),
			positiveRule("r2", "AB123", "ZZ10"),
		},
		[]models.CatalogItem{source("s1", "AB123")},
		[]models.CatalogItem{supplier("u1", "XY99"), supplier("u2", "ZZ10")},
		nil,
	)

	require.Len(t, out.Confirmed, 2)
	assert.ElementsMatch(t, []string{"r1", "r2"}, out.AppliedRuleIDs)
}

func TestEngine_OverlappingRulesEmitPairOnce(t *testing.T) {
	e := NewEngine(testLogger())

	out := e.Apply(
		[]models.MasterRule{
			positiveRule("r1", "AB123", "XY99"),
			positiveRule("r2", "AB123", "XY99"),
		},
		[]models.CatalogItem{source("s1", "AB123")},
		[]models.CatalogItem{supplier("u1", "XY99")},
		nil,
	)

	require.Len(t, out.Confirmed, 1)
}

func TestRulesFromDecision_Approve(t *testing.T) {
	got, err := RulesFromDecision(LearnInput{
		TenantID: "t1", ProjectID: "p1",
		Decision:  models.ReviewDecisionApprove,
		StorePart: "AB-123", SupplierPart: "XY-99",
		ReviewedBy: "reviewer@example.com",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.MasterRuleTypePositiveMap, got[0].RuleType)
	assert.Equal(t, "AB123", got[0].StorePartNorm)
	assert.Equal(t, "XY99", got[0].SupplierPartNorm)
	assert.Equal(t, models.MasterRuleScopeProject, got[0].Scope)
	require.NotNil(t, got[0].ProjectID)
	assert.Equal(t, "p1", *got[0].ProjectID)
}

func TestRulesFromDecision_Reject(t *testing.T) {
	got, err := RulesFromDecision(LearnInput{
		TenantID: "t1", ProjectID: "p1",
		Decision:  models.ReviewDecisionReject,
		StorePart: "AB-123", SupplierPart: "XY-99",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.MasterRuleTypeNegativeBlock, got[0].RuleType)
}

func TestRulesFromDecision_CorrectBlocksAndMaps(t *testing.T) {
	got, err := RulesFromDecision(LearnInput{
		TenantID: "t1", ProjectID: "p1",
		Decision:  models.ReviewDecisionCorrect,
		StorePart: "AB-123", SupplierPart: "XY-99", CorrectedPart: "ZZ-10",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.MasterRuleTypeNegativeBlock, got[0].RuleType)
	assert.Equal(t, "XY99", got[0].SupplierPartNorm)
	assert.Equal(t, models.MasterRuleTypePositiveMap, got[1].RuleType)
	assert.Equal(t, "ZZ10", got[1].SupplierPartNorm)
}

func TestRulesFromDecision_CorrectRequiresCorrectedPart(t *testing.T) {
	_, err := RulesFromDecision(LearnInput{
		TenantID: "t1", ProjectID: "p1",
		Decision:  models.ReviewDecisionCorrect,
		StorePart: "AB-123", SupplierPart: "XY-99",
	})
	require.Error(t, err)
}

func TestRulesFromDecision_UnknownDecision(t *testing.T) {
	_, err := RulesFromDecision(LearnInput{
		Decision:  "maybe",
		StorePart: "AB-123", SupplierPart: "XY-99",
	})
	require.Error(t, err)
}

func TestParseDecisionsCSV(t *testing.T) {
	input := `decision,store_part_number,supplier_part_number,corrected_part_number,project_id,reviewed_by,confidence
approve,AB-123,XY-99,,p1,reviewer@example.com,0.9
correct,CD-456,ZZ-10,ZZ-11,p1,,
`
	got, err := ParseDecisionsCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, models.ReviewDecisionApprove, got[0].Decision)
	assert.Equal(t, "AB-123", got[0].StorePart)
	assert.Equal(t, "XY-99", got[0].SupplierPart)
	assert.Equal(t, "p1", got[0].ProjectID)
	assert.Equal(t, "reviewer@example.com", got[0].ReviewedBy)
	assert.Equal(t, 0.9, got[0].Confidence)

	assert.Equal(t, models.ReviewDecisionCorrect, got[1].Decision)
	assert.Equal(t, "ZZ-11", got[1].CorrectedPart)
}

func TestParseDecisionsCSV_RowsLearnRules(t *testing.T) {
	input := `decision,store_part_number,supplier_part_number,corrected_part_number,project_id,reviewed_by,confidence
reject,AB-123,XY-99,,p1,,
`
	got, err := ParseDecisionsCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 1)

	got[0].TenantID = "t1"
	learned, err := RulesFromDecision(got[0])
	require.NoError(t, err)
	require.Len(t, learned, 1)
	assert.Equal(t, models.MasterRuleTypeNegativeBlock, learned[0].RuleType)
	assert.Equal(t, "AB123", learned[0].StorePartNorm)
}

func TestParseDecisionsCSV_RejectsWrongHeader(t *testing.T) {
	_, err := ParseDecisionsCSV(strings.NewReader("a,b,c\n1,2,3\n"))
	require.Error(t, err)
}

func TestParseDecisionsCSV_RequiresProjectID(t *testing.T) {
	input := `decision,store_part_number,supplier_part_number,corrected_part_number,project_id,reviewed_by,confidence
approve,AB-123,XY-99,,,,
`
	_, err := ParseDecisionsCSV(strings.NewReader(input))
	require.Error(t, err)
}

func TestParseDecisionsCSV_RejectsMalformedConfidence(t *testing.T) {
	input := `decision,store_part_number,supplier_part_number,corrected_part_number,project_id,reviewed_by,confidence
approve,AB-123,XY-99,,p1,,high
`
	_, err := ParseDecisionsCSV(strings.NewReader(input))
	require.Error(t, err)
}
