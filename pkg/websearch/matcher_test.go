package websearch

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type fakeSearcher struct {
	results map[string][]Result // keyed by part number substring
	err     error
	calls   int
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for key, res := range f.results {
		if strings.Contains(query, key) {
			return res, nil
		}
	}
	return nil, nil
}

type fakeLLM struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func floatPtr(f float64) *float64 { return &f }

func item(id, part, norm, desc string, role models.CatalogItemRole) models.CatalogItem {
	return models.CatalogItem{
		ID:             id,
		TenantID:       "t1",
		ProjectID:      "p1",
		Role:           role,
		PartNumber:     part,
		PartNumberNorm: norm,
		Description:    desc,
		Cost:           floatPtr(25.0),
	}
}

func newTestMatcher(searcher Searcher, llm *fakeLLM) *Matcher {
	selector := matching.NewSelector(matching.DefaultConfig())
	return NewMatcher(searcher, llm, selector, MatcherConfig{MinResults: 2, SearchWorkers: 2}, testLogger())
}

func hits(n int) []Result {
	out := make([]Result, n)
	for i := range out {
		out[i] = Result{
			Title:   fmt.Sprintf("result %d", i+1),
			URL:     fmt.Sprintf("https://example.com/%d", i+1),
			Snippet: "OEM cross reference listing",
		}
	}
	return out
}

func TestMatchChunk_ProducesCappedCandidate(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]Result{"AB-123": hits(3)}}
	llm := &fakeLLM{reply: `[{"source_part_number": "AB-123", "match": true, "supplier_part_number": "XY-99", "confidence": 0.95, "reasoning": "listed as direct interchange"}]`}
	m := newTestMatcher(searcher, llm)

	items := []models.CatalogItem{item("s1", "AB-123", "AB123", "alternator bracket bolt kit complete", models.CatalogItemRoleSource)}
	suppliers := []models.CatalogItem{item("u1", "XY-99", "XY99", "alternator bracket bolt kit complete", models.CatalogItemRoleSupplier)}

	got, usage, err := m.MatchChunk(context.Background(), items, suppliers)
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, models.MatchMethodWebSearch, c.Method)
	assert.Equal(t, models.MatchStageWebSearch, c.MatchStage)
	// model said 0.95 but this stage never exceeds its ceiling
	assert.InDelta(t, 0.80, c.Confidence, 1e-9)
	assert.Equal(t, "s1", c.SourceItemID)
	require.NotNil(t, c.TargetID)
	assert.Equal(t, "u1", *c.TargetID)
	assert.Equal(t, 3, c.Features.Data.SearchResultCount)
	assert.NotEmpty(t, c.Features.Data.SearchQuery)
	assert.Equal(t, 0.95, c.Features.Data.ModelConfidence)

	assert.Equal(t, 1, usage.SearchCalls)
	assert.Equal(t, 1, usage.LLMCalls)
}

func TestMatchChunk_SkipsItemsBelowResultFloor(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]Result{"AB-123": hits(1)}}
	llm := &fakeLLM{}
	m := newTestMatcher(searcher, llm)

	items := []models.CatalogItem{item("s1", "AB-123", "AB123", "alternator bracket bolt kit", models.CatalogItemRoleSource)}
	suppliers := []models.CatalogItem{item("u1", "XY-99", "XY99", "alternator bracket bolt kit", models.CatalogItemRoleSupplier)}

	got, usage, err := m.MatchChunk(context.Background(), items, suppliers)
	require.NoError(t, err)
	assert.Empty(t, got)
	// search happened but no evaluation
	assert.Equal(t, 1, usage.SearchCalls)
	assert.Equal(t, 0, usage.LLMCalls)
	assert.Empty(t, llm.prompts)
}

func TestMatchChunk_SkipsUnsearchableItems(t *testing.T) {
	searcher := &fakeSearcher{}
	llm := &fakeLLM{}
	m := newTestMatcher(searcher, llm)

	items := []models.CatalogItem{
		item("s1", "A1", "A1", "too short to search", models.CatalogItemRoleSource),
		item("s2", "AB-123", "AB123", "", models.CatalogItemRoleSource),
	}

	got, usage, err := m.MatchChunk(context.Background(), items, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, usage.SearchCalls)
	assert.Equal(t, 0, searcher.calls)
}

func TestMatchChunk_SearchFailureSkipsItemOnly(t *testing.T) {
	searcher := &fakeSearcher{err: fmt.Errorf("upstream 500")}
	llm := &fakeLLM{}
	m := newTestMatcher(searcher, llm)

	items := []models.CatalogItem{item("s1", "AB-123", "AB123", "alternator bracket bolt kit", models.CatalogItemRoleSource)}

	got, usage, err := m.MatchChunk(context.Background(), items, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, usage.SearchCalls)
	assert.Equal(t, 0, usage.LLMCalls)
}

func TestMatchChunk_MalformedEvaluationDropsChunk(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]Result{"AB-123": hits(2)}}
	llm := &fakeLLM{reply: "these all look great to me"}
	m := newTestMatcher(searcher, llm)

	items := []models.CatalogItem{item("s1", "AB-123", "AB123", "alternator bracket bolt kit", models.CatalogItemRoleSource)}
	suppliers := []models.CatalogItem{item("u1", "XY-99", "XY99", "alternator bracket bolt kit", models.CatalogItemRoleSupplier)}

	got, usage, err := m.MatchChunk(context.Background(), items, suppliers)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, usage.LLMCalls)
}

func TestMatchChunk_RejectsSupplierOutsideCandidates(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]Result{"AB-123": hits(2)}}
	llm := &fakeLLM{reply: `[{"source_part_number": "AB-123", "match": true, "supplier_part_number": "ZZ-1", "confidence": 0.9, "reasoning": "hallucinated"}]`}
	m := newTestMatcher(searcher, llm)

	items := []models.CatalogItem{item("s1", "AB-123", "AB123", "alternator bracket bolt kit", models.CatalogItemRoleSource)}
	suppliers := []models.CatalogItem{item("u1", "XY-99", "XY99", "alternator bracket bolt kit", models.CatalogItemRoleSupplier)}

	got, _, err := m.MatchChunk(context.Background(), items, suppliers)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBuildQuery(t *testing.T) {
	src := item("s1", "AB-123", "AB123", "alternator mounting bracket upper steel", models.CatalogItemRoleSource)
	q := BuildQuery(&src)
	assert.Contains(t, q, `"AB-123"`)
	assert.Contains(t, q, "alternator")
	assert.Contains(t, q, "automotive part")
	// keyword list is truncated
	assert.NotContains(t, q, "steel")
}

func TestSearchable(t *testing.T) {
	ok := item("s1", "AB-123", "AB123", "alternator bracket", models.CatalogItemRoleSource)
	short := item("s2", "A1", "A1", "alternator bracket", models.CatalogItemRoleSource)
	blank := item("s3", "AB-124", "AB124", "   ", models.CatalogItemRoleSource)

	assert.True(t, Searchable(&ok))
	assert.False(t, Searchable(&short))
	assert.False(t, Searchable(&blank))
}
