package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestFuzzyConfidenceBands(t *testing.T) {
	tests := []struct {
		score    float64
		expected float64
	}{
		{0.95, 0.95},
		{0.90, 0.95},
		{0.87, 0.90},
		{0.82, 0.85},
		{0.77, 0.80},
		{0.72, 0.75},
		{0.65, 0.70},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, fuzzyConfidenceBand(tt.score), "score %v", tt.score)
	}
}

func TestCombinedFuzzyScore(t *testing.T) {
	// A weak description validates but never drags a strong part-number
	// score down: similarity 0.82/0.55 lands in the 0.85 confidence band.
	assert.Equal(t, 0.85, fuzzyConfidenceBand(combinedFuzzyScore(0.82, 0.55)))

	// A strong description can lift the combined score above the part score
	assert.InDelta(t, 0.86, combinedFuzzyScore(0.80, 1.0), 0.0001)
}

func TestFuzzyMatcher_BestMatch(t *testing.T) {
	m := NewFuzzyMatcher(DefaultConfig())

	src := sourceItem("s1", "BR-4521", nil, "brake rotor front", nil)
	candidates := []models.CatalogItem{
		supplierItem("u1", "BR4521X", nil, "front brake rotor", nil),
		supplierItem("u2", "WP9999", nil, "water pump", nil),
	}

	out := m.BestMatch(&src, candidates)
	require.NotNil(t, out)
	assert.Equal(t, "u1", *out.TargetID)
	assert.Equal(t, models.MatchMethodFuzzy, out.Method)
	assert.Equal(t, models.MatchStageFuzzy, out.MatchStage)
	assert.GreaterOrEqual(t, out.Confidence, 0.70)
	assert.LessOrEqual(t, out.Confidence, 1.0)
	assert.Greater(t, out.Features.Data.PartSimilarity, 0.65)
}

func TestFuzzyMatcher_ExactlyOneCandidate(t *testing.T) {
	m := NewFuzzyMatcher(DefaultConfig())

	src := sourceItem("s1", "BR-4521", nil, "brake rotor front", nil)
	candidates := []models.CatalogItem{
		supplierItem("u1", "BR4521X", nil, "front brake rotor", nil),
		supplierItem("u2", "BR4521", nil, "brake rotor front", nil),
		supplierItem("u3", "BR4521XY", nil, "brake rotor", nil),
	}

	// BestMatch returns one candidate no matter how many clear the thresholds
	out := m.BestMatch(&src, candidates)
	require.NotNil(t, out)
	assert.Equal(t, "u2", *out.TargetID) // identical normalized part wins
}

func TestFuzzyMatcher_DescriptionFloorRejects(t *testing.T) {
	m := NewFuzzyMatcher(DefaultConfig())

	// Part numbers are identical but the descriptions share nothing: the
	// validation floor suppresses the false positive.
	src := sourceItem("s1", "BR4521", nil, "alpha beta", nil)
	candidates := []models.CatalogItem{
		supplierItem("u1", "BR4521", nil, "zzz qqq", nil),
	}

	assert.Nil(t, m.BestMatch(&src, candidates))
}

func TestFuzzyMatcher_ShortPartNumbersSkipped(t *testing.T) {
	m := NewFuzzyMatcher(DefaultConfig())

	src := sourceItem("s1", "A1", nil, "bolt", nil)
	candidates := []models.CatalogItem{
		supplierItem("u1", "A1", nil, "bolt", nil),
	}

	assert.Nil(t, m.BestMatch(&src, candidates))
}

func TestFuzzyMatcher_BelowThresholdRejected(t *testing.T) {
	m := NewFuzzyMatcher(DefaultConfig())

	src := sourceItem("s1", "BR4521", nil, "brake rotor", nil)
	candidates := []models.CatalogItem{
		supplierItem("u1", "ZQX88", nil, "brake rotor", nil),
	}

	assert.Nil(t, m.BestMatch(&src, candidates))
}
