// Package supersession resolves discontinued part numbers to their
// replacements and re-matches the replacement against the supplier catalog.
package supersession

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/ai"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/websearch"
)

const (
	// Replacement-number matches inherit the exact tier's confidence scaled
	// by this penalty, and never exceed the ceiling.
	confidencePenalty   = 0.85
	confidenceCeiling   = 0.80
	minLookupPartLength = 4
)

// Usage reports the paid calls one item consumed
type Usage struct {
	SearchCalls int
	LLMCalls    int
}

// Matcher finds replacement part numbers for items nothing else matched.
// It asks the model directly first, then falls back to extracting the
// replacement from web search evidence.
type Matcher struct {
	llm      ai.Client
	searcher websearch.Searcher
	exact    *matching.ExactMatcher
	logger   ectologger.Logger
}

// NewMatcher creates a new supersession matcher. The searcher may be nil to
// disable the web fallback.
func NewMatcher(llm ai.Client, searcher websearch.Searcher, exact *matching.ExactMatcher, logger ectologger.Logger) *Matcher {
	return &Matcher{
		llm:      llm,
		searcher: searcher,
		exact:    exact,
		logger:   logger,
	}
}

// MatchItem resolves one item's replacement number and re-runs the exact
// join with it. Returns nil when no replacement is found or the replacement
// is unknown to the supplier catalog.
func (m *Matcher) MatchItem(ctx context.Context, src *models.CatalogItem, suppliers []models.CatalogItem, interchange []models.InterchangeRow) (*models.MatchCandidate, Usage, error) {
	ctx, span := tracing.StartSpan(ctx, "supersession.Matcher.MatchItem")
	defer span.End()

	var usage Usage
	if len(src.PartNumberNorm) < minLookupPartLength {
		return nil, usage, nil
	}

	resp, err := m.lookup(ctx, src, &usage)
	if err != nil {
		return nil, usage, err
	}
	if resp == nil || !resp.Superseded || strings.TrimSpace(resp.ReplacementPart) == "" {
		return nil, usage, nil
	}

	replacementNorm := normalizers.PartNumber(resp.ReplacementPart)
	if replacementNorm == "" || replacementNorm == src.PartNumberNorm {
		return nil, usage, nil
	}

	// Re-run the exact join as if the item carried the replacement number.
	// A stated manufacturer stands in for the missing line code.
	probe := *src
	probe.PartNumber = resp.ReplacementPart
	probe.PartNumberNorm = replacementNorm
	if resp.Manufacturer != "" {
		mfr := resp.Manufacturer
		probe.LineCode = &mfr
	}

	found := m.exact.Match([]models.CatalogItem{probe}, suppliers, interchange)
	if len(found) == 0 {
		m.logger.WithContext(ctx).WithFields(map[string]any{
			"source_item_id":   src.ID,
			"replacement_part": resp.ReplacementPart,
		}).Info("Replacement number not in supplier catalog")
		return nil, usage, nil
	}

	base := found[0]
	if base.TargetType != models.MatchTargetSupplier || base.TargetID == nil {
		return nil, usage, nil
	}

	confidence := min(base.Confidence*confidencePenalty, confidenceCeiling)
	return &models.MatchCandidate{
		TenantID:     src.TenantID,
		ProjectID:    src.ProjectID,
		SourceItemID: src.ID,
		TargetType:   models.MatchTargetSupplier,
		TargetID:     base.TargetID,
		Method:       models.MatchMethodSupersession,
		MatchStage:   models.MatchStageWebSearch,
		Confidence:   confidence,
		Status:       models.MatchCandidateStatusPending,
		Features: database.JSONB[models.MatchFeatures]{Data: models.MatchFeatures{
			ConfidenceTier:  base.Features.Data.ConfidenceTier,
			ReplacementPart: resp.ReplacementPart,
			Reasoning:       resp.Reasoning,
		}},
	}, usage, nil
}

// lookup asks the model for the replacement number, falling back to web
// evidence when the direct answer is negative and a searcher is wired.
func (m *Matcher) lookup(ctx context.Context, src *models.CatalogItem, usage *Usage) (*ai.SupersessionResponse, error) {
	raw, err := m.llm.Complete(ctx, lookupSystemPrompt, supersessionLookupPrompt(src))
	if err != nil {
		return nil, err
	}
	usage.LLMCalls++

	resp, err := ai.ParseSupersessionResponse(raw)
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_item_id": src.ID,
		}).Warn("Discarding unparseable supersession reply")
		resp = nil
	}
	if resp != nil && resp.Superseded {
		return resp, nil
	}
	if m.searcher == nil {
		return resp, nil
	}

	query := fmt.Sprintf("%q superseded replacement part number", src.PartNumber)
	results, err := m.searcher.Search(ctx, query)
	usage.SearchCalls++
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_item_id": src.ID,
		}).Warn("Supersession search failed")
		return resp, nil
	}
	if len(results) == 0 {
		return resp, nil
	}

	raw, err = m.llm.Complete(ctx, lookupSystemPrompt, supersessionExtractPrompt(src, results))
	if err != nil {
		return nil, err
	}
	usage.LLMCalls++

	extracted, err := ai.ParseSupersessionResponse(raw)
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_item_id": src.ID,
		}).Warn("Discarding unparseable supersession extraction")
		return resp, nil
	}
	return extracted, nil
}
