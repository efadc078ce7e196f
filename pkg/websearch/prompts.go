package websearch

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/ai"
)

const evaluationSystemPrompt = `You are an automotive parts cataloging expert. You evaluate web search evidence to decide whether store parts correspond to supplier parts. Answer with JSON only, no prose outside the JSON.`

const batchResponseSchema = `[{"source_part_number": string, "match": bool, "supplier_part_number": string, "confidence": number between 0 and 1, "reasoning": string}]`

// batchWebEvaluationPrompt renders all gathered evidence for one chunk into
// a single evaluation request.
func batchWebEvaluationPrompt(entries []WebEvaluationEntry) string {
	var b strings.Builder
	b.WriteString("For each store item below, decide whether the web evidence shows it matches one of its supplier candidates. Only report a match when the evidence names a concrete relationship (same part, interchange, or supersession).\n")

	for i, e := range entries {
		fmt.Fprintf(&b, "\n=== Item %d ===\nStore item: %s\nSearch query: %s\nResults:\n", i+1, ai.FormatItem(e.Item), e.Query)
		for j, r := range e.Results {
			fmt.Fprintf(&b, "  %d. %s | %s | %s\n", j+1, r.Title, r.URL, r.Snippet)
		}
		b.WriteString("Supplier candidates:\n")
		for j, c := range e.Candidates {
			fmt.Fprintf(&b, "  %d. %s\n", j+1, ai.FormatItem(c.Item))
		}
	}

	fmt.Fprintf(&b, "\nRespond with a JSON array holding one entry per item: %s", batchResponseSchema)
	return b.String()
}
