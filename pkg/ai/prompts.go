package ai

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
)

const systemPrompt = `You are an automotive parts cataloging expert. You compare part records from different catalogs and decide whether they identify the same physical part. Answer with JSON only, no prose outside the JSON.`

// FormatItem renders a catalog item for a prompt
func FormatItem(item *models.CatalogItem) string {
	line := ""
	if item.LineCode != nil {
		line = *item.LineCode
	}
	cost := "n/a"
	if item.Cost != nil {
		cost = fmt.Sprintf("%.2f", *item.Cost)
	}
	return fmt.Sprintf("part_number=%q line_code=%q description=%q cost=%s",
		item.PartNumber, line, item.Description, cost)
}

func formatCandidates(candidates []matching.ScoredCandidate) string {
	var b strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, FormatItem(c.Item))
	}
	return b.String()
}

const matchResponseSchema = `{"match": bool, "supplier_part_number": string, "confidence": number between 0 and 1, "reasoning": string}`

// exactValidatePrompt asks the model to confirm that two records sharing a
// normalized part number describe the same part.
func exactValidatePrompt(src *models.CatalogItem, candidates []matching.ScoredCandidate) string {
	return fmt.Sprintf(`A store item and supplier items share the same normalized part number. Confirm whether the descriptions are consistent with being the same part, or whether this is a part-number collision between unrelated parts.

Store item:
%s

Supplier items with the identical normalized part number:
%s
Respond with JSON: %s`, FormatItem(src), formatCandidates(candidates), matchResponseSchema)
}

// crossReferencePrompt asks the model to identify OEM/aftermarket
// interchange relationships among the top candidates.
func crossReferencePrompt(src *models.CatalogItem, candidates []matching.ScoredCandidate) string {
	return fmt.Sprintf(`Identify whether any supplier item below is a known OEM or aftermarket cross-reference (interchange) for the store item. Only report a match when you are aware of a real interchange relationship between the part numbers.

Store item:
%s

Supplier candidates:
%s
Respond with JSON: %s`, FormatItem(src), formatCandidates(candidates), matchResponseSchema)
}

// descriptivePrompt asks for a functional match based on the descriptions
func descriptivePrompt(src *models.CatalogItem, candidates []matching.ScoredCandidate) string {
	return fmt.Sprintf(`Based only on the descriptions, decide whether any supplier item below is functionally the same part as the store item. Be conservative: different dimensions, positions, or materials mean no match.

Store item:
%s

Supplier candidates sharing description keywords:
%s
Respond with JSON: %s`, FormatItem(src), formatCandidates(candidates), matchResponseSchema)
}

// universalPartPrompt asks whether a generic/dimensional part is
// interchangeable with a candidate.
func universalPartPrompt(src *models.CatalogItem, candidates []matching.ScoredCandidate) string {
	return fmt.Sprintf(`The store item appears to be a universal or dimensionally specified part (fastener, fitting, generic hardware). Decide whether any supplier item below is dimensionally interchangeable with it.

Store item:
%s

Supplier candidates:
%s
Respond with JSON: %s`, FormatItem(src), formatCandidates(candidates), matchResponseSchema)
}
