package integration

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/ai"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/rules"
	"github.com/Ramsey-B/fern/pkg/supersession"
	"github.com/Ramsey-B/fern/pkg/websearch"
)

// scriptedLLM returns canned replies keyed by substrings of the system and
// user prompts, and a decline by default.
type scriptedLLM struct {
	mu      sync.Mutex
	calls   int
	replies []llmReply
}

type llmReply struct {
	system string
	prompt string
	reply  string
}

func (f *scriptedLLM) Complete(_ context.Context, system, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	for _, r := range f.replies {
		if strings.Contains(system, r.system) && strings.Contains(prompt, r.prompt) {
			return r.reply, nil
		}
	}
	switch {
	case strings.Contains(system, "supersession"):
		return `{"superseded": false, "replacement_part_number": "", "manufacturer": "", "reasoning": "no record"}`, nil
	case strings.Contains(system, "web search evidence"):
		return `[]`, nil
	default:
		return `{"match": false, "supplier_part_number": "", "confidence": 0, "reasoning": "no match"}`, nil
	}
}

type fixedSearcher struct {
	mu      sync.Mutex
	calls   int
	results []websearch.Result
}

func (f *fixedSearcher) Search(_ context.Context, _ string) ([]websearch.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.results, nil
}

func strptr(s string) *string { return &s }

// TestMatchingPipelineEndToEnd walks a small catalog through every stage in
// order, with the stages wired exactly as the job executor wires them:
// master rules first, then exact, fuzzy, AI, web search, and supersession,
// each stage seeing only the items the earlier stages left unmatched and
// negative rules suppressing pairs at every stage.
func TestMatchingPipelineEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	logger := testLogger()
	tenantID := "t1"
	projectID := "p1"

	item := func(id, pn, norm, desc string, line *string) models.CatalogItem {
		return models.CatalogItem{
			ID: id, TenantID: tenantID, ProjectID: projectID,
			PartNumber: pn, PartNumberNorm: norm, Description: desc, LineCode: line,
		}
	}

	suppliers := []models.CatalogItem{
		item("sup-brake", "BP1234", "BP1234", "Brake Pad", strptr("ACD")),
		item("sup-bracket", "BRK5566", "BRK5566", "Caliper Bracket Hardware", nil),
		item("sup-alt", "ALT-500", "ALT500", "Alternator Assembly 12 Volt", nil),
		item("sup-vendor", "VND200", "VND200", "Water Pump", nil),
		item("sup-blocked", "QQ-111", "QQ111", "Oil Filter", nil),
		item("sup-new", "NEW456", "NEW456", "Ignition Coil", nil),
	}
	for i := range suppliers {
		suppliers[i].Role = models.CatalogItemRoleSupplier
	}

	sources := []models.CatalogItem{
		item("src-positive", "RL-100", "RL100", "Serpentine Belt", nil),
		item("src-negative", "QQ-111", "QQ111", "", nil),
		item("src-exact", "BP-1234", "BP1234", "Brake Pad", strptr("ACD")),
		item("src-interchange", "OEM-100", "OEM100", "Water Pump", nil),
		item("src-fuzzy", "BRK-5566A", "BRK5566A", "Caliper Bracket Hardware", nil),
		item("src-ai", "XR-777", "XR777", "Alternator 12 Volt 90 Amp", nil),
		item("src-web", "WP-900", "WP900", "Water Pump Housing Gasket", nil),
		item("src-super", "OLD-123", "OLD123", "Ignition Coil", nil),
		item("src-none", "ZZ", "ZZ", "", nil),
	}
	for i := range sources {
		sources[i].Role = models.CatalogItemRoleSource
	}

	interchange := []models.InterchangeRow{{
		ID: "ic-1", TenantID: tenantID, ProjectID: projectID,
		SourcePartNorm: "OEM100", VendorPartNorm: "VND200",
		Vendor: strptr("Gates"), Confidence: 0.9,
	}}

	projectRules := []models.MasterRule{
		{
			ID: "rule-pos", TenantID: tenantID,
			RuleType: models.MasterRuleTypePositiveMap,
			Scope:    models.MasterRuleScopeProject, ProjectID: &projectID,
			StorePartNorm: "RL100", SupplierPartNorm: "VND200", Confidence: 1.0,
		},
		{
			ID: "rule-neg", TenantID: tenantID,
			RuleType: models.MasterRuleTypeNegativeBlock,
			Scope:    models.MasterRuleScopeProject, ProjectID: &projectID,
			StorePartNorm: "QQ111", SupplierPartNorm: "QQ111", Confidence: 1.0,
		},
	}

	llm := &scriptedLLM{replies: []llmReply{
		{
			system: "compare part records",
			prompt: "XR-777",
			reply:  `{"match": true, "supplier_part_number": "ALT-500", "confidence": 0.8, "reasoning": "same electrical spec"}`,
		},
		{
			system: "web search evidence",
			prompt: "WP-900",
			reply:  `[{"source_part_number": "WP-900", "match": true, "supplier_part_number": "VND200", "confidence": 0.9, "reasoning": "OEM cross listing"}]`,
		},
		{
			system: "supersession",
			prompt: "OLD-123",
			reply:  `{"superseded": true, "replacement_part_number": "NEW-456", "manufacturer": "ACDelco", "reasoning": "discontinued 2019"}`,
		},
	}}
	searcher := &fixedSearcher{results: []websearch.Result{
		{Title: "Parts listing", URL: "https://example.com/a", Snippet: "fits most models"},
		{Title: "Catalog page", URL: "https://example.com/b", Snippet: "cross reference"},
	}}

	engCfg := matching.DefaultConfig()
	exactMatcher := matching.NewExactMatcher(engCfg)
	fuzzyMatcher := matching.NewFuzzyMatcher(engCfg)
	selector := matching.NewSelector(engCfg)
	ruleEngine := rules.NewEngine(logger)
	aiMatcher := ai.NewMatcher(llm, ai.MatcherConfig{CostPerItemUSD: 0.01}, logger)
	webMatcher := websearch.NewMatcher(searcher, llm, selector, websearch.MatcherConfig{MinResults: 2}, logger)
	superMatcher := supersession.NewMatcher(llm, nil, exactMatcher, logger)

	// Pairs forbidden by negative rules, keyed by source and supplier item
	// IDs. Mirrors the pair-scoped filtering the executor applies after
	// every stage: a rule blocks only its own (store, supplier) pairing.
	blockedPairs := map[string]map[string]bool{}
	for _, r := range projectRules {
		if r.RuleType != models.MasterRuleTypeNegativeBlock {
			continue
		}
		for i := range sources {
			if sources[i].PartNumberNorm != r.StorePartNorm {
				continue
			}
			for j := range suppliers {
				if suppliers[j].PartNumberNorm == r.SupplierPartNorm {
					if blockedPairs[sources[i].ID] == nil {
						blockedPairs[sources[i].ID] = map[string]bool{}
					}
					blockedPairs[sources[i].ID][suppliers[j].ID] = true
				}
			}
		}
	}
	dropBlocked := func(in []*models.MatchCandidate) []*models.MatchCandidate {
		var out []*models.MatchCandidate
		for _, c := range in {
			if c.TargetID != nil && blockedPairs[c.SourceItemID][*c.TargetID] && c.Method != models.MatchMethodMasterRule {
				continue
			}
			out = append(out, c)
		}
		return out
	}

	var settled []*models.MatchCandidate
	pool := sources
	advance := func(matched []*models.MatchCandidate) {
		settled = append(settled, matched...)
		matchedIDs := map[string]bool{}
		for _, c := range matched {
			matchedIDs[c.SourceItemID] = true
		}
		var next []models.CatalogItem
		for _, s := range pool {
			if !matchedIDs[s.ID] {
				next = append(next, s)
			}
		}
		pool = next
	}

	// Stage 0: master rules
	outcome := ruleEngine.Apply(projectRules, pool, suppliers, nil)
	require.Len(t, outcome.Confirmed, 1)
	ruled := outcome.Confirmed[0]
	assert.Equal(t, "src-positive", ruled.SourceItemID)
	assert.Equal(t, "sup-vendor", *ruled.TargetID)
	assert.Equal(t, models.MatchMethodMasterRule, ruled.Method)
	assert.Equal(t, models.MatchCandidateStatusConfirmed, ruled.Status)
	assert.Equal(t, 1.0, ruled.Confidence)
	require.Len(t, outcome.Blocked, 1)
	assert.Equal(t, "src-negative", outcome.Blocked[0].SourceItemID)
	assert.Equal(t, "sup-blocked", outcome.Blocked[0].TargetID)
	assert.ElementsMatch(t, []string{"rule-pos", "rule-neg"}, outcome.AppliedRuleIDs)
	advance(outcome.Confirmed)

	// Stage 1: exact and interchange
	exactCands := exactMatcher.Match(pool, suppliers, interchange)
	require.Len(t, exactCands, 3, "exact, interchange, and the to-be-blocked pair")
	exactCands = dropBlocked(exactCands)
	require.Len(t, exactCands, 2)

	bysource := func(cands []*models.MatchCandidate) map[string]*models.MatchCandidate {
		out := make(map[string]*models.MatchCandidate, len(cands))
		for _, c := range cands {
			out[c.SourceItemID] = c
		}
		return out
	}
	exactBy := bysource(exactCands)
	require.Contains(t, exactBy, "src-exact")
	assert.Equal(t, "sup-brake", *exactBy["src-exact"].TargetID)
	assert.Equal(t, models.MatchMethodExactNormalized, exactBy["src-exact"].Method)
	assert.InDelta(t, 0.98, exactBy["src-exact"].Confidence, 0.0001)
	assert.Equal(t, "line_code_match", exactBy["src-exact"].Features.Data.ConfidenceTier)

	require.Contains(t, exactBy, "src-interchange")
	assert.Equal(t, "sup-vendor", *exactBy["src-interchange"].TargetID)
	assert.Equal(t, models.MatchMethodInterchange, exactBy["src-interchange"].Method)
	assert.InDelta(t, 0.9, exactBy["src-interchange"].Confidence, 0.0001)
	assert.Equal(t, "Gates", exactBy["src-interchange"].Features.Data.InterchangeVendor)
	advance(exactCands)

	// Stage 2: fuzzy
	var fuzzyCands []*models.MatchCandidate
	for i := range pool {
		if best := fuzzyMatcher.BestMatch(&pool[i], suppliers); best != nil {
			fuzzyCands = append(fuzzyCands, best)
		}
	}
	fuzzyCands = dropBlocked(fuzzyCands)
	require.Len(t, fuzzyCands, 1)
	assert.Equal(t, "src-fuzzy", fuzzyCands[0].SourceItemID)
	assert.Equal(t, "sup-bracket", *fuzzyCands[0].TargetID)
	assert.Equal(t, models.MatchMethodFuzzy, fuzzyCands[0].Method)
	assert.InDelta(t, 0.80, fuzzyCands[0].Confidence, 0.0001)
	assert.InDelta(t, 0.70, fuzzyCands[0].Features.Data.PartSimilarity, 0.0001)
	advance(fuzzyCands)

	// Stage 3: AI
	var aiCands []*models.MatchCandidate
	for i := range pool {
		candidates := selector.Select(&pool[i], suppliers)
		matched, err := aiMatcher.MatchItem(ctx, &pool[i], candidates)
		require.NoError(t, err)
		if matched != nil {
			aiCands = append(aiCands, matched)
		}
	}
	aiCands = dropBlocked(aiCands)
	require.Len(t, aiCands, 1)
	assert.Equal(t, "src-ai", aiCands[0].SourceItemID)
	assert.Equal(t, "sup-alt", *aiCands[0].TargetID)
	assert.Equal(t, models.MatchMethodAI, aiCands[0].Method)
	// Cross-reference verdicts are discounted from the model's confidence
	assert.InDelta(t, 0.68, aiCands[0].Confidence, 0.0001)
	assert.Equal(t, "cross_reference", aiCands[0].Features.Data.Strategy)
	assert.InDelta(t, 0.8, aiCands[0].Features.Data.ModelConfidence, 0.0001)
	advance(aiCands)

	// Stage 4: web search
	webCands, usage, err := webMatcher.MatchChunk(ctx, pool, suppliers)
	require.NoError(t, err)
	webCands = dropBlocked(webCands)
	require.Len(t, webCands, 1)
	assert.Equal(t, "src-web", webCands[0].SourceItemID)
	assert.Equal(t, "sup-vendor", *webCands[0].TargetID)
	assert.Equal(t, models.MatchMethodWebSearch, webCands[0].Method)
	// Web evidence is capped below the model's stated confidence
	assert.InDelta(t, 0.80, webCands[0].Confidence, 0.0001)
	assert.Equal(t, 2, webCands[0].Features.Data.SearchResultCount)
	assert.Equal(t, 2, usage.SearchCalls, "src-web and src-super are searchable")
	assert.Equal(t, 1, usage.LLMCalls, "one batched evaluation per chunk")
	advance(webCands)

	// Stage 5: supersession
	var superCands []*models.MatchCandidate
	for i := range pool {
		matched, _, err := superMatcher.MatchItem(ctx, &pool[i], suppliers, interchange)
		require.NoError(t, err)
		if matched != nil {
			superCands = append(superCands, matched)
		}
	}
	superCands = dropBlocked(superCands)
	require.Len(t, superCands, 1)
	assert.Equal(t, "src-super", superCands[0].SourceItemID)
	assert.Equal(t, "sup-new", *superCands[0].TargetID)
	assert.Equal(t, models.MatchMethodSupersession, superCands[0].Method)
	assert.InDelta(t, 0.80, superCands[0].Confidence, 0.0001)
	assert.Equal(t, "NEW-456", superCands[0].Features.Data.ReplacementPart)
	advance(superCands)

	// The blocked item and the too-short part number stay unmatched
	require.Len(t, pool, 2)
	remaining := map[string]bool{}
	for _, s := range pool {
		remaining[s.ID] = true
	}
	assert.True(t, remaining["src-negative"])
	assert.True(t, remaining["src-none"])
	assert.Len(t, settled, 7)

	// Every candidate reports the stage its method belongs to
	for _, c := range settled {
		assert.Equal(t, models.StageForMethod(c.Method), c.MatchStage)
	}
}
