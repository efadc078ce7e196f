package websearch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/ai"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// webSearchCap bounds every confidence this stage produces
	webSearchCap = 0.80

	defaultSearchWorkers = 4
	minSearchablePartLen = 3
)

// WebEvaluationEntry bundles one item's search evidence for the batched
// model evaluation.
type WebEvaluationEntry struct {
	Item       *models.CatalogItem
	Query      string
	Results    []Result
	Candidates []matching.ScoredCandidate
}

// Usage reports the paid calls one chunk consumed
type Usage struct {
	SearchCalls int
	LLMCalls    int
}

// MatcherConfig tunes the web-search stage
type MatcherConfig struct {
	MinResults    int
	SearchWorkers int
}

// Matcher searches the public web for items nothing else matched and asks
// the model to evaluate all gathered evidence in one batched call.
type Matcher struct {
	searcher Searcher
	llm      ai.Client
	selector *matching.Selector
	cfg      MatcherConfig
	logger   ectologger.Logger
}

// NewMatcher creates a new web-search matcher
func NewMatcher(searcher Searcher, llm ai.Client, selector *matching.Selector, cfg MatcherConfig, logger ectologger.Logger) *Matcher {
	if cfg.MinResults <= 0 {
		cfg.MinResults = 2
	}
	if cfg.SearchWorkers <= 0 {
		cfg.SearchWorkers = defaultSearchWorkers
	}
	return &Matcher{
		searcher: searcher,
		llm:      llm,
		selector: selector,
		cfg:      cfg,
		logger:   logger,
	}
}

// MatchChunk searches every searchable item in the chunk concurrently, then
// evaluates the collected evidence in a single batched model call.
func (m *Matcher) MatchChunk(ctx context.Context, items []models.CatalogItem, suppliers []models.CatalogItem) ([]*models.MatchCandidate, Usage, error) {
	ctx, span := tracing.StartSpan(ctx, "websearch.Matcher.MatchChunk")
	defer span.End()

	var usage Usage

	entries, searchCalls := m.gatherEvidence(ctx, items, suppliers)
	usage.SearchCalls = searchCalls
	if len(entries) == 0 {
		return nil, usage, nil
	}

	raw, err := m.llm.Complete(ctx, evaluationSystemPrompt, batchWebEvaluationPrompt(entries))
	if err != nil {
		return nil, usage, err
	}
	usage.LLMCalls = 1

	verdicts, err := ai.ParseBatchMatchResponse(raw)
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).Warn("Discarding unparseable batch evaluation")
		return nil, usage, nil
	}

	byPart := make(map[string]*WebEvaluationEntry, len(entries))
	for i := range entries {
		byPart[strings.ToUpper(strings.TrimSpace(entries[i].Item.PartNumber))] = &entries[i]
	}

	var out []*models.MatchCandidate
	for _, v := range verdicts {
		if !v.Match {
			continue
		}
		entry, ok := byPart[strings.ToUpper(strings.TrimSpace(v.SourcePart))]
		if !ok {
			m.logger.WithContext(ctx).WithFields(map[string]any{
				"source_part": v.SourcePart,
			}).Warn("Verdict names an item outside the batch")
			continue
		}
		target := resolveCandidate(v.SupplierPart, entry.Candidates)
		if target == nil {
			continue
		}

		confidence := min(v.Confidence, webSearchCap)
		targetID := target.ID
		out = append(out, &models.MatchCandidate{
			TenantID:     entry.Item.TenantID,
			ProjectID:    entry.Item.ProjectID,
			SourceItemID: entry.Item.ID,
			TargetType:   models.MatchTargetSupplier,
			TargetID:     &targetID,
			Method:       models.MatchMethodWebSearch,
			MatchStage:   models.MatchStageWebSearch,
			Confidence:   confidence,
			Status:       models.MatchCandidateStatusPending,
			Features: database.JSONB[models.MatchFeatures]{Data: models.MatchFeatures{
				SearchQuery:       entry.Query,
				SearchResultCount: len(entry.Results),
				Reasoning:         v.Reasoning,
				ModelConfidence:   v.Confidence,
			}},
		})
	}

	return out, usage, nil
}

// gatherEvidence searches every searchable item with a bounded worker pool
// and keeps entries that cleared the result floor.
func (m *Matcher) gatherEvidence(ctx context.Context, items []models.CatalogItem, suppliers []models.CatalogItem) ([]WebEvaluationEntry, int) {
	type slot struct {
		entry WebEvaluationEntry
		ok    bool
	}

	searchable := make([]*models.CatalogItem, 0, len(items))
	for i := range items {
		if Searchable(&items[i]) {
			searchable = append(searchable, &items[i])
		}
	}
	if len(searchable) == 0 {
		return nil, 0
	}

	slots := make([]slot, len(searchable))
	sem := make(chan struct{}, m.cfg.SearchWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	searchCalls := 0

	for i, item := range searchable {
		wg.Add(1)
		go func(i int, item *models.CatalogItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			query := BuildQuery(item)
			results, err := m.searcher.Search(ctx, query)
			mu.Lock()
			searchCalls++
			mu.Unlock()
			if err != nil {
				m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"source_item_id": item.ID,
				}).Warn("Search failed, skipping item")
				return
			}
			if len(results) < m.cfg.MinResults {
				return
			}

			candidates := m.selector.Select(item, suppliers)
			if len(candidates) == 0 {
				return
			}
			slots[i] = slot{
				entry: WebEvaluationEntry{
					Item:       item,
					Query:      query,
					Results:    results,
					Candidates: candidates,
				},
				ok: true,
			}
		}(i, item)
	}
	wg.Wait()

	entries := make([]WebEvaluationEntry, 0, len(slots))
	for _, s := range slots {
		if s.ok {
			entries = append(entries, s.entry)
		}
	}
	return entries, searchCalls
}

// Searchable reports whether an item carries enough signal to be worth a
// paid lookup.
func Searchable(item *models.CatalogItem) bool {
	if len(item.PartNumberNorm) < minSearchablePartLen {
		return false
	}
	return strings.TrimSpace(item.Description) != ""
}

// BuildQuery composes the search query from the part number and the
// strongest description keywords.
func BuildQuery(item *models.CatalogItem) string {
	keywords := matching.Keywords(item.Description)
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	parts := []string{fmt.Sprintf("%q", item.PartNumber)}
	parts = append(parts, keywords...)
	parts = append(parts, "automotive part")
	return strings.Join(parts, " ")
}

// resolveCandidate maps a part number named by the model to one of the
// item's pre-selected candidates.
func resolveCandidate(part string, candidates []matching.ScoredCandidate) *models.CatalogItem {
	trimmed := strings.TrimSpace(part)
	if trimmed == "" {
		return nil
	}
	upper := strings.ToUpper(trimmed)
	for _, c := range candidates {
		if strings.EqualFold(c.Item.PartNumber, trimmed) || c.Item.PartNumberNorm == upper {
			return c.Item
		}
	}
	return nil
}
