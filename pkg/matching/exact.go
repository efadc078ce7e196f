package matching

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// Exact confidence tiers, highest to lowest
const (
	ConfidenceRawIdentical       = 1.0  // identical raw part number and line code
	ConfidenceLineCodeMatch      = 0.98 // normalized line codes match
	ConfidenceComplexNullLine    = 0.95 // complex part, one or both line codes absent
	ConfidenceNullLineCode       = 0.92 // one or both line codes absent
	ConfidenceComplexOverride    = 0.90 // line-code mismatch allowed by complex override
	DefaultInterchangeConfidence = 0.85
)

// ExactMatcher joins source items against the supplier catalog on normalized
// part numbers with relaxed line-code constraints, plus the interchange
// bridge.
type ExactMatcher struct {
	cfg    EngineConfig
	scorer *Scorer
}

// NewExactMatcher creates a new exact matcher
func NewExactMatcher(cfg EngineConfig) *ExactMatcher {
	return &ExactMatcher{cfg: cfg, scorer: NewScorer()}
}

// Match evaluates a chunk of source items against the supplier catalog and
// interchange reference data. It returns at most one candidate per source
// item.
func (m *ExactMatcher) Match(sources []models.CatalogItem, suppliers []models.CatalogItem, interchange []models.InterchangeRow) []*models.MatchCandidate {
	supplierIdx := indexSuppliers(suppliers)
	interchangeIdx := indexInterchange(interchange)

	var out []*models.MatchCandidate
	for i := range sources {
		src := &sources[i]
		if src.PartNumberNorm == "" {
			continue
		}

		exact := m.bestExact(src, supplierIdx)
		bridge := m.bestInterchange(src, supplierIdx, interchangeIdx)

		// Interchange-bridged matches outrank straight joins; the prefix-strip
		// policy instead falls back to a shortened join key.
		var chosen *models.MatchCandidate
		switch {
		case bridge != nil && (m.cfg.TieBreak == TieBreakInterchangeFirst || exact == nil):
			chosen = bridge
		case exact != nil:
			chosen = exact
		case m.cfg.TieBreak == TieBreakPrefixStrip && len(src.PartNumberNorm) > 5:
			stripped := *src
			stripped.PartNumberNorm = src.PartNumberNorm[3:]
			chosen = m.bestExact(&stripped, supplierIdx)
			if chosen != nil {
				chosen.SourceItemID = src.ID
			}
		}

		if chosen != nil {
			out = append(out, chosen)
		}
	}
	return out
}

// bestExact returns the highest-tier supplier join for a source item
func (m *ExactMatcher) bestExact(src *models.CatalogItem, supplierIdx map[string][]*models.CatalogItem) *models.MatchCandidate {
	matches := supplierIdx[src.PartNumberNorm]
	if len(matches) == 0 {
		return nil
	}

	var best *models.CatalogItem
	bestConf := 0.0
	bestTier := ""
	for _, sup := range matches {
		conf, tier, ok := m.tier(src, sup)
		if !ok {
			continue
		}
		// Stable tie-break on supplier id
		if conf > bestConf || (conf == bestConf && best != nil && sup.ID < best.ID) {
			best = sup
			bestConf = conf
			bestTier = tier
		}
	}
	if best == nil {
		return nil
	}

	features := models.MatchFeatures{ConfidenceTier: bestTier}
	if m.cfg.CostRatioCheckEnabled {
		adjusted, ratio, applied := applyCostRatio(bestConf, src.Cost, best.Cost)
		bestConf = adjusted
		features.CostRatio = ratio
		features.CostRatioApplied = applied
	}

	targetID := best.ID
	return &models.MatchCandidate{
		TenantID:     src.TenantID,
		ProjectID:    src.ProjectID,
		SourceItemID: src.ID,
		TargetType:   models.MatchTargetSupplier,
		TargetID:     &targetID,
		Method:       models.MatchMethodExactNormalized,
		MatchStage:   models.MatchStageExact,
		Confidence:   bestConf,
		Status:       models.MatchCandidateStatusPending,
		Features:     database.JSONB[models.MatchFeatures]{Data: features},
	}
}

// tier evaluates the relaxed line-code rules for one pairing
func (m *ExactMatcher) tier(src, sup *models.CatalogItem) (float64, string, bool) {
	srcLine := lineCodeOf(src)
	supLine := lineCodeOf(sup)
	complex := normalizers.IsComplexPartNumber(src.PartNumberNorm)

	switch {
	case src.PartNumber == sup.PartNumber && srcLine != "" && srcLine == supLine &&
		derefOrEmpty(src.LineCode) == derefOrEmpty(sup.LineCode):
		return ConfidenceRawIdentical, "raw_identical", true
	case srcLine != "" && srcLine == supLine:
		return ConfidenceLineCodeMatch, "line_code_match", true
	case srcLine == "" || supLine == "":
		if complex {
			return ConfidenceComplexNullLine, "complex_null_line", true
		}
		return ConfidenceNullLineCode, "null_line_code", true
	case complex:
		// Complex part numbers are unique enough to ignore brand
		return ConfidenceComplexOverride, "complex_override", true
	default:
		return 0, "", false
	}
}

// bestInterchange resolves a source part through the interchange table to a
// supplier item. Vendor-filled rows outrank rows with no vendor; remaining
// ties break on the lowest row id.
func (m *ExactMatcher) bestInterchange(src *models.CatalogItem, supplierIdx map[string][]*models.CatalogItem, interchangeIdx map[string][]*models.InterchangeRow) *models.MatchCandidate {
	rows := interchangeIdx[src.PartNumberNorm]
	if len(rows) == 0 {
		return nil
	}

	ranked := make([]*models.InterchangeRow, len(rows))
	copy(ranked, rows)
	sort.Slice(ranked, func(i, j int) bool {
		iVendor := ranked[i].Vendor != nil && *ranked[i].Vendor != ""
		jVendor := ranked[j].Vendor != nil && *ranked[j].Vendor != ""
		if iVendor != jVendor {
			return iVendor
		}
		return ranked[i].ID < ranked[j].ID
	})

	for _, row := range ranked {
		confidence := row.Confidence
		if confidence <= 0 {
			confidence = DefaultInterchangeConfidence
		}
		features := models.MatchFeatures{ConfidenceTier: "interchange"}
		if row.Vendor != nil {
			features.InterchangeVendor = *row.Vendor
		}

		if matches := supplierIdx[row.VendorPartNorm]; len(matches) > 0 {
			best := matches[0]
			for _, sup := range matches[1:] {
				if sup.ID < best.ID {
					best = sup
				}
			}
			if m.cfg.CostRatioCheckEnabled {
				adjusted, ratio, applied := applyCostRatio(confidence, src.Cost, best.Cost)
				confidence = adjusted
				features.CostRatio = ratio
				features.CostRatioApplied = applied
			}
			targetID := best.ID
			return &models.MatchCandidate{
				TenantID:     src.TenantID,
				ProjectID:    src.ProjectID,
				SourceItemID: src.ID,
				TargetType:   models.MatchTargetSupplier,
				TargetID:     &targetID,
				Method:       models.MatchMethodInterchange,
				MatchStage:   models.MatchStageExact,
				Confidence:   confidence,
				Status:       models.MatchCandidateStatusPending,
				Features:     database.JSONB[models.MatchFeatures]{Data: features},
			}
		}
	}

	// The interchange knows the part but no supplier item carries the vendor
	// number. Record it so reviewers can see the mapping exists.
	top := ranked[0]
	confidence := top.Confidence
	if confidence <= 0 {
		confidence = DefaultInterchangeConfidence
	}
	features := models.MatchFeatures{ConfidenceTier: "interchange_only"}
	if top.Vendor != nil {
		features.InterchangeVendor = *top.Vendor
	}
	return &models.MatchCandidate{
		TenantID:     src.TenantID,
		ProjectID:    src.ProjectID,
		SourceItemID: src.ID,
		TargetType:   models.MatchTargetInterchangeOnly,
		Method:       models.MatchMethodInterchange,
		MatchStage:   models.MatchStageExact,
		Confidence:   confidence,
		Status:       models.MatchCandidateStatusPending,
		Features:     database.JSONB[models.MatchFeatures]{Data: features},
	}
}

func indexSuppliers(suppliers []models.CatalogItem) map[string][]*models.CatalogItem {
	idx := make(map[string][]*models.CatalogItem, len(suppliers))
	for i := range suppliers {
		sup := &suppliers[i]
		if sup.PartNumberNorm == "" {
			continue
		}
		idx[sup.PartNumberNorm] = append(idx[sup.PartNumberNorm], sup)
	}
	return idx
}

func indexInterchange(rows []models.InterchangeRow) map[string][]*models.InterchangeRow {
	idx := make(map[string][]*models.InterchangeRow, len(rows))
	for i := range rows {
		row := &rows[i]
		idx[row.SourcePartNorm] = append(idx[row.SourcePartNorm], row)
	}
	return idx
}

func lineCodeOf(item *models.CatalogItem) string {
	if item.LineCode == nil {
		return ""
	}
	return normalizers.LineCode(*item.LineCode)
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
