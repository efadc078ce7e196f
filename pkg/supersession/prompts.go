package supersession

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/ai"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/websearch"
)

const lookupSystemPrompt = `You are an automotive parts cataloging expert. You know manufacturer supersession chains: when a part number is discontinued and replaced by a newer number. Answer with JSON only, no prose outside the JSON.`

const supersessionSchema = `{"superseded": bool, "replacement_part_number": string, "manufacturer": string, "reasoning": string}`

// supersessionLookupPrompt asks the model directly whether it knows a
// replacement for a part number.
func supersessionLookupPrompt(src *models.CatalogItem) string {
	return fmt.Sprintf(`Has the following part number been superseded or replaced by a newer part number? Only answer yes when you know the actual supersession; do not guess.

Part:
%s

Respond with JSON: %s`, ai.FormatItem(src), supersessionSchema)
}

// supersessionExtractPrompt asks the model to pull a replacement number out
// of web search evidence.
func supersessionExtractPrompt(src *models.CatalogItem, results []websearch.Result) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s | %s | %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return fmt.Sprintf(`The search results below are for a possibly discontinued part. Extract the replacement part number if the results state one. Only report a supersession the results actually describe.

Part:
%s

Search results:
%s
Respond with JSON: %s`, ai.FormatItem(src), b.String(), supersessionSchema)
}
