package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

func sourceItem(id, part string, lineCode *string, desc string, cost *float64) models.CatalogItem {
	return models.CatalogItem{
		ID:             id,
		TenantID:       "t1",
		ProjectID:      "p1",
		Role:           models.CatalogItemRoleSource,
		PartNumber:     part,
		PartNumberNorm: normalizers.PartNumber(part),
		LineCode:       lineCode,
		Description:    desc,
		Cost:           cost,
	}
}

func supplierItem(id, part string, lineCode *string, desc string, cost *float64) models.CatalogItem {
	item := sourceItem(id, part, lineCode, desc, cost)
	item.Role = models.CatalogItemRoleSupplier
	return item
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestExactMatcher_NullLineCodes(t *testing.T) {
	m := NewExactMatcher(DefaultConfig())

	sources := []models.CatalogItem{sourceItem("s1", "00123-A", nil, "gasket", nil)}
	suppliers := []models.CatalogItem{supplierItem("u1", "123A", nil, "gasket", nil)}

	out := m.Match(sources, suppliers, nil)
	require.Len(t, out, 1)
	assert.Equal(t, models.MatchMethodExactNormalized, out[0].Method)
	assert.Equal(t, models.MatchStageExact, out[0].MatchStage)
	assert.Equal(t, 0.92, out[0].Confidence)
	assert.Equal(t, "u1", *out[0].TargetID)
}

func TestExactMatcher_RawIdentical(t *testing.T) {
	m := NewExactMatcher(DefaultConfig())

	sources := []models.CatalogItem{sourceItem("s1", "BR-4521", strPtr("ACD"), "rotor", nil)}
	suppliers := []models.CatalogItem{supplierItem("u1", "BR-4521", strPtr("ACD"), "rotor", nil)}

	out := m.Match(sources, suppliers, nil)
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, out[0].Confidence)
}

func TestExactMatcher_NormalizedLineCodeMatch(t *testing.T) {
	m := NewExactMatcher(DefaultConfig())

	sources := []models.CatalogItem{sourceItem("s1", "BR-4521", strPtr("ac-d"), "rotor", nil)}
	suppliers := []models.CatalogItem{supplierItem("u1", "BR4521", strPtr("ACD"), "rotor", nil)}

	out := m.Match(sources, suppliers, nil)
	require.Len(t, out, 1)
	assert.Equal(t, 0.98, out[0].Confidence)
}

func TestExactMatcher_ComplexOverride(t *testing.T) {
	m := NewExactMatcher(DefaultConfig())

	// BR4521X is complex (len > 5, has digits); mismatched line codes allowed
	sources := []models.CatalogItem{sourceItem("s1", "BR-4521X", strPtr("ACD"), "rotor", nil)}
	suppliers := []models.CatalogItem{supplierItem("u1", "BR4521X", strPtr("ZZZ"), "rotor", nil)}

	out := m.Match(sources, suppliers, nil)
	require.Len(t, out, 1)
	assert.Equal(t, 0.90, out[0].Confidence)
}

func TestExactMatcher_SimplePartLineCodeMismatchRejected(t *testing.T) {
	m := NewExactMatcher(DefaultConfig())

	// AB1 is not complex; conflicting brands must not join
	sources := []models.CatalogItem{sourceItem("s1", "AB1", strPtr("ACD"), "bolt", nil)}
	suppliers := []models.CatalogItem{supplierItem("u1", "AB1", strPtr("ZZZ"), "bolt", nil)}

	out := m.Match(sources, suppliers, nil)
	assert.Empty(t, out)
}

func TestExactMatcher_CostRatioHalved(t *testing.T) {
	m := NewExactMatcher(DefaultConfig())

	// Ratio 48/9.5 = 5.05 exceeds the mismatch threshold: 0.98 -> 0.49
	sources := []models.CatalogItem{sourceItem("s1", "BR-4521", strPtr("ACD"), "rotor", floatPtr(48.00))}
	suppliers := []models.CatalogItem{supplierItem("u1", "BR4521", strPtr("ACD"), "rotor", floatPtr(9.50))}

	out := m.Match(sources, suppliers, nil)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.49, out[0].Confidence, 0.0001)
	assert.Equal(t, "halved", out[0].Features.Data.CostRatioApplied)
}

func TestExactMatcher_CostRatioBoost(t *testing.T) {
	m := NewExactMatcher(DefaultConfig())

	sources := []models.CatalogItem{sourceItem("s1", "BR-4521", strPtr("ACD"), "rotor", floatPtr(10.00))}
	suppliers := []models.CatalogItem{supplierItem("u1", "BR4521", strPtr("ACD"), "rotor", floatPtr(10.20))}

	out := m.Match(sources, suppliers, nil)
	require.Len(t, out, 1)
	assert.InDelta(t, 1.0, out[0].Confidence, 0.0001) // 0.98 + 0.05 capped at 1.0
}

func TestExactMatcher_InterchangePrecedence(t *testing.T) {
	m := NewExactMatcher(DefaultConfig())

	sources := []models.CatalogItem{sourceItem("s1", "123A", nil, "gasket", nil)}
	suppliers := []models.CatalogItem{
		supplierItem("u1", "123A", nil, "gasket", nil), // straight join
		supplierItem("u2", "999X", nil, "gasket", nil), // interchange target
	}
	interchange := []models.InterchangeRow{{
		ID:             "i1",
		ProjectID:      "p1",
		SourcePartNorm: "123A",
		VendorPartNorm: "999X",
		Vendor:         strPtr("acme"),
		Confidence:     0.85,
	}}

	out := m.Match(sources, suppliers, interchange)
	require.Len(t, out, 1)
	assert.Equal(t, models.MatchMethodInterchange, out[0].Method)
	assert.Equal(t, "u2", *out[0].TargetID)
	assert.Equal(t, 0.85, out[0].Confidence)
	assert.Equal(t, "acme", out[0].Features.Data.InterchangeVendor)
}

func TestExactMatcher_InterchangeVendorRanking(t *testing.T) {
	m := NewExactMatcher(DefaultConfig())

	sources := []models.CatalogItem{sourceItem("s1", "123A", nil, "gasket", nil)}
	suppliers := []models.CatalogItem{
		supplierItem("u1", "888Y", nil, "gasket", nil),
		supplierItem("u2", "999X", nil, "gasket", nil),
	}
	// Vendor-filled row outranks the earlier empty-vendor row
	interchange := []models.InterchangeRow{
		{ID: "i1", ProjectID: "p1", SourcePartNorm: "123A", VendorPartNorm: "888Y", Confidence: 0.85},
		{ID: "i2", ProjectID: "p1", SourcePartNorm: "123A", VendorPartNorm: "999X", Vendor: strPtr("acme"), Confidence: 0.85},
	}

	out := m.Match(sources, suppliers, interchange)
	require.Len(t, out, 1)
	assert.Equal(t, "u2", *out[0].TargetID)
}

func TestExactMatcher_InterchangeOnly(t *testing.T) {
	m := NewExactMatcher(DefaultConfig())

	sources := []models.CatalogItem{sourceItem("s1", "123A", nil, "gasket", nil)}
	interchange := []models.InterchangeRow{{
		ID: "i1", ProjectID: "p1", SourcePartNorm: "123A", VendorPartNorm: "999X", Confidence: 0.85,
	}}

	out := m.Match(sources, nil, interchange)
	require.Len(t, out, 1)
	assert.Equal(t, models.MatchTargetInterchangeOnly, out[0].TargetType)
	assert.Nil(t, out[0].TargetID)
}

func TestExactMatcher_PrefixStripTieBreak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TieBreak = TieBreakPrefixStrip
	m := NewExactMatcher(cfg)

	// No straight join for ACD4521X, but stripping the 3-char prefix finds one
	sources := []models.CatalogItem{sourceItem("s1", "ACD4521X", nil, "rotor", nil)}
	suppliers := []models.CatalogItem{supplierItem("u1", "4521X", nil, "rotor", nil)}

	out := m.Match(sources, suppliers, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "s1", out[0].SourceItemID)
	assert.Equal(t, "u1", *out[0].TargetID)
}

func TestExactMatcher_OneCandidatePerItem(t *testing.T) {
	m := NewExactMatcher(DefaultConfig())

	sources := []models.CatalogItem{sourceItem("s1", "BR-4521", strPtr("ACD"), "rotor", nil)}
	suppliers := []models.CatalogItem{
		supplierItem("u2", "BR4521", strPtr("ACD"), "rotor", nil),
		supplierItem("u1", "BR4521", strPtr("ACD"), "rotor", nil),
	}

	out := m.Match(sources, suppliers, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "u1", *out[0].TargetID) // stable tie-break on supplier id
}
