package ai

import (
	"context"
	"regexp"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Per-strategy confidence rules. Multiplied caps scale the model's stated
// confidence; absolute caps clamp it.
const (
	exactValidateCap = 0.95
	crossRefCap      = 0.85
	crossRefMinModel = 0.60
	descriptiveCap   = 0.70
	universalCap     = 0.65
	fallbackMinModel = 0.50

	crossRefMaxCandidates = 20
	descriptiveMinWords   = 3
	descriptiveMinShared  = 2
)

// MatcherConfig tunes the LLM matching stage
type MatcherConfig struct {
	CostPerItemUSD float64
}

// Matcher evaluates pre-selected candidates with an LLM, trying strategies
// in order from most to least trustworthy. The first strategy that produces
// an accepted match wins; later strategies are never consulted for the item.
type Matcher struct {
	client Client
	cfg    MatcherConfig
	logger ectologger.Logger
}

// NewMatcher creates a new LLM matcher
func NewMatcher(client Client, cfg MatcherConfig, logger ectologger.Logger) *Matcher {
	return &Matcher{client: client, cfg: cfg, logger: logger}
}

// CostPerItem returns the estimated spend for one matched item
func (m *Matcher) CostPerItem() float64 {
	return m.cfg.CostPerItemUSD
}

// strategy is one LLM evaluation approach. applies gates whether the
// strategy is worth a call; accept converts the model reply into a final
// confidence, or rejects it.
type strategy struct {
	name    string
	applies func(src *models.CatalogItem, candidates []matching.ScoredCandidate) []matching.ScoredCandidate
	prompt  func(src *models.CatalogItem, candidates []matching.ScoredCandidate) string
	accept  func(modelConfidence float64) (float64, bool)
}

func (m *Matcher) strategies() []strategy {
	return []strategy{
		{
			name: "exact_validate",
			applies: func(src *models.CatalogItem, candidates []matching.ScoredCandidate) []matching.ScoredCandidate {
				var sameNorm []matching.ScoredCandidate
				for _, c := range candidates {
					if c.Item.PartNumberNorm != "" && c.Item.PartNumberNorm == src.PartNumberNorm {
						sameNorm = append(sameNorm, c)
					}
				}
				return sameNorm
			},
			prompt: exactValidatePrompt,
			accept: func(mc float64) (float64, bool) {
				return exactValidateCap * mc, true
			},
		},
		{
			name: "cross_reference",
			applies: func(src *models.CatalogItem, candidates []matching.ScoredCandidate) []matching.ScoredCandidate {
				if len(candidates) > crossRefMaxCandidates {
					candidates = candidates[:crossRefMaxCandidates]
				}
				return candidates
			},
			prompt: crossReferencePrompt,
			accept: func(mc float64) (float64, bool) {
				if mc < crossRefMinModel {
					return 0, false
				}
				return crossRefCap * mc, true
			},
		},
		{
			name: "descriptive",
			applies: func(src *models.CatalogItem, candidates []matching.ScoredCandidate) []matching.ScoredCandidate {
				if len(strings.Fields(src.Description)) < descriptiveMinWords {
					return nil
				}
				var shared []matching.ScoredCandidate
				for _, c := range candidates {
					if matching.SharedKeywords(src.Description, c.Item.Description) >= descriptiveMinShared {
						shared = append(shared, c)
					}
				}
				return shared
			},
			prompt: descriptivePrompt,
			accept: func(mc float64) (float64, bool) {
				if mc < fallbackMinModel {
					return 0, false
				}
				return min(mc, descriptiveCap), true
			},
		},
		{
			name: "universal_part",
			applies: func(src *models.CatalogItem, candidates []matching.ScoredCandidate) []matching.ScoredCandidate {
				if !isUniversalPart(src.Description) {
					return nil
				}
				return candidates
			},
			prompt: universalPartPrompt,
			accept: func(mc float64) (float64, bool) {
				if mc < fallbackMinModel {
					return 0, false
				}
				return min(mc, universalCap), true
			},
		},
	}
}

// MatchItem runs the strategies in order against the item's candidate set
// and returns the first accepted match, or nil when no strategy produced
// one. Provider and parse failures on one strategy do not abort the item.
func (m *Matcher) MatchItem(ctx context.Context, src *models.CatalogItem, candidates []matching.ScoredCandidate) (*models.MatchCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "ai.Matcher.MatchItem")
	defer span.End()

	if len(candidates) == 0 {
		return nil, nil
	}

	for _, strat := range m.strategies() {
		subset := strat.applies(src, candidates)
		if len(subset) == 0 {
			continue
		}

		raw, err := m.client.Complete(ctx, systemPrompt, strat.prompt(src, subset))
		if err != nil {
			// Provider errors are retryable at the job level
			return nil, err
		}

		resp, err := ParseMatchResponse(raw)
		if err != nil {
			m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"strategy":       strat.name,
				"source_item_id": src.ID,
			}).Warn("Discarding unparseable model reply")
			continue
		}
		if !resp.Match {
			continue
		}

		target := resolveSupplierPart(resp.SupplierPart, subset)
		if target == nil {
			m.logger.WithContext(ctx).WithFields(map[string]any{
				"strategy":       strat.name,
				"source_item_id": src.ID,
				"supplier_part":  resp.SupplierPart,
			}).Warn("Model named a part outside the candidate set")
			continue
		}

		confidence, ok := strat.accept(resp.Confidence)
		if !ok {
			continue
		}

		targetID := target.ID
		return &models.MatchCandidate{
			TenantID:     src.TenantID,
			ProjectID:    src.ProjectID,
			SourceItemID: src.ID,
			TargetType:   models.MatchTargetSupplier,
			TargetID:     &targetID,
			Method:       models.MatchMethodAI,
			MatchStage:   models.MatchStageAI,
			Confidence:   confidence,
			Status:       models.MatchCandidateStatusPending,
			Features: database.JSONB[models.MatchFeatures]{Data: models.MatchFeatures{
				Strategy:        strat.name,
				Reasoning:       resp.Reasoning,
				ModelConfidence: resp.Confidence,
			}},
		}, nil
	}

	return nil, nil
}

// resolveSupplierPart maps the part number the model named back to a
// candidate, comparing raw and normalized forms.
func resolveSupplierPart(part string, candidates []matching.ScoredCandidate) *models.CatalogItem {
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
	// Normalize the model's spelling the same way catalog items are
	var norm strings.Builder
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			norm.WriteRune(r)
		}
	}
	normalized := strings.TrimLeft(norm.String(), "0")
	for _, c := range candidates {
		if c.Item.PartNumberNorm == normalized {
			return c.Item
		}
	}
	return nil
}

var (
	dimensionPattern = regexp.MustCompile(`\b\d+(\.\d+)?\s*(mm|cm|in|inch|ft|"|x\s*\d)`)
	universalWords   = []string{
		"bolt", "nut", "washer", "screw", "clamp", "fitting", "hose",
		"fuse", "bulb", "terminal", "grommet", "o-ring", "oring", "rivet",
	}
)

// isUniversalPart reports whether a description looks like generic hardware
// or a dimensionally specified part.
func isUniversalPart(desc string) bool {
	lower := strings.ToLower(desc)
	if dimensionPattern.MatchString(lower) {
		return true
	}
	for _, w := range universalWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
