package matching

import (
	"math"
	"strings"
)

// Scorer provides the string and value comparison algorithms shared by the
// matching stages
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// ExactMatch returns 1.0 for exact match, 0.0 otherwise
func (s *Scorer) ExactMatch(a, b string, caseSensitive bool) float64 {
	if !caseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	if a == b {
		return 1.0
	}
	return 0.0
}

// Trigram calculates trigram similarity between two strings, matching the
// semantics of Postgres pg_trgm: strings are padded, the score is the ratio
// of shared trigrams to the union of trigrams.
// Returns a value between 0.0 (no shared trigrams) and 1.0 (identical).
func (s *Scorer) Trigram(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0.0
		}
		return 1.0
	}

	aGrams := trigramSet(a)
	bGrams := trigramSet(b)
	if len(aGrams) == 0 || len(bGrams) == 0 {
		return 0.0
	}

	shared := 0
	for g := range aGrams {
		if _, ok := bGrams[g]; ok {
			shared++
		}
	}

	union := len(aGrams) + len(bGrams) - shared
	if union == 0 {
		return 0.0
	}
	return float64(shared) / float64(union)
}

// trigramSet extracts the padded trigram set of a string, pg_trgm style:
// two leading spaces and one trailing space.
func trigramSet(s string) map[string]struct{} {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	padded := "  " + s + " "
	grams := make(map[string]struct{}, len(padded))
	for i := 0; i+3 <= len(padded); i++ {
		grams[padded[i:i+3]] = struct{}{}
	}
	return grams
}

// Levenshtein calculates edit-distance similarity between two strings.
// Returns a similarity score between 0.0 and 1.0.
func (s *Scorer) Levenshtein(a, b string) float64 {
	distance := s.LevenshteinDistance(a, b)
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// LevenshteinDistance calculates the edit distance between two strings
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

// CostProximity scores how close two costs are. 1.0 when nearly identical,
// decaying to 0.0 as the ratio grows past maxRatio.
func (s *Scorer) CostProximity(a, b, maxRatio float64) float64 {
	if a <= 0 || b <= 0 {
		return 0.0
	}
	ratio := math.Max(a, b) / math.Min(a, b)
	if ratio >= maxRatio {
		return 0.0
	}
	return 1.0 - (ratio-1.0)/(maxRatio-1.0)
}

// WeightedScore calculates a weighted average of scores
func (s *Scorer) WeightedScore(scores map[string]float64, weights map[string]float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	var totalWeight float64
	var weightedSum float64

	for field, score := range scores {
		weight := 1.0 // Default weight
		if w, ok := weights[field]; ok {
			weight = w
		}
		weightedSum += score * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0.0
	}

	return weightedSum / totalWeight
}

// stopwords excluded from description keyword comparison
var stopwords = map[string]struct{}{
	"with": {}, "from": {}, "that": {}, "this": {}, "part": {},
	"assembly": {}, "assy": {}, "kit": {}, "set": {}, "each": {},
	"front": {}, "rear": {}, "left": {}, "right": {}, "side": {},
}

// Keywords extracts comparison keywords from a normalized description:
// tokens longer than 3 characters that are not stopwords.
func Keywords(desc string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(desc)) {
		if len(tok) <= 3 {
			continue
		}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// SharedKeywords counts keywords present in both descriptions
func SharedKeywords(a, b string) int {
	bSet := make(map[string]struct{})
	for _, k := range Keywords(b) {
		bSet[k] = struct{}{}
	}
	shared := 0
	seen := make(map[string]struct{})
	for _, k := range Keywords(a) {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := bSet[k]; ok {
			shared++
		}
	}
	return shared
}
