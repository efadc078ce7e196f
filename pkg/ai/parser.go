package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MatchResponse is the JSON schema every single-item strategy asks the model
// to return.
type MatchResponse struct {
	Match        bool    `json:"match"`
	SupplierPart string  `json:"supplier_part_number"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// BatchMatchResponse is the per-item entry of the batched web evaluation
type BatchMatchResponse struct {
	SourcePart   string  `json:"source_part_number"`
	Match        bool    `json:"match"`
	SupplierPart string  `json:"supplier_part_number"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// SupersessionResponse is the schema for the replacement-number lookup
type SupersessionResponse struct {
	Superseded      bool   `json:"superseded"`
	ReplacementPart string `json:"replacement_part_number"`
	Manufacturer    string `json:"manufacturer"`
	Reasoning       string `json:"reasoning"`
}

// cleanMarkdownWrapper strips a markdown code fence from around a JSON reply.
// Models frequently wrap JSON in ```json blocks despite instructions.
func cleanMarkdownWrapper(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// extractJSON pulls the first JSON object or array out of a reply that may
// carry prose around it.
func extractJSON(s string) string {
	s = cleanMarkdownWrapper(s)
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	open := s[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}
	end := strings.LastIndexByte(s, close)
	if end <= start {
		return s[start:]
	}
	return s[start : end+1]
}

// ParseMatchResponse parses a single-item strategy reply
func ParseMatchResponse(raw string) (*MatchResponse, error) {
	var resp MatchResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return nil, fmt.Errorf("malformed match response: %w", err)
	}
	if resp.Confidence < 0 || resp.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range", resp.Confidence)
	}
	return &resp, nil
}

// ParseBatchMatchResponse parses the batched web evaluation reply
func ParseBatchMatchResponse(raw string) ([]BatchMatchResponse, error) {
	var resp []BatchMatchResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return nil, fmt.Errorf("malformed batch response: %w", err)
	}
	for i := range resp {
		if resp[i].Confidence < 0 || resp[i].Confidence > 1 {
			return nil, fmt.Errorf("confidence %v out of range at entry %d", resp[i].Confidence, i)
		}
	}
	return resp, nil
}

// ParseSupersessionResponse parses the replacement-number lookup reply
func ParseSupersessionResponse(raw string) (*SupersessionResponse, error) {
	var resp SupersessionResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return nil, fmt.Errorf("malformed supersession response: %w", err)
	}
	return &resp, nil
}
