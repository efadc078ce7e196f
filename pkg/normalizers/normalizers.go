// Package normalizers provides identifier normalization shared by every
// matching stage. Stages must never normalize on their own; divergent
// normalization between stages is a correctness bug.
package normalizers

import (
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("uppercase", Uppercase)
	Register("trim", Trim)
	Register("alphanumeric", Alphanumeric)
	Register("part_number", PartNumber)
	Register("line_code", LineCode)
	Register("description", Description)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Uppercase converts string to uppercase
func Uppercase(s string) string {
	return strings.ToUpper(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// PartNumber canonicalizes a part number for comparison: uppercase, strip
// all non-alphanumeric characters, then strip leading zeros. Empty in,
// empty out.
func PartNumber(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(unicode.ToUpper(r))
		}
	}
	return strings.TrimLeft(result.String(), "0")
}

// LineCode canonicalizes a brand/line code: uppercase alphanumerics only.
// Leading zeros are kept since line codes are short fixed tokens.
func LineCode(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(unicode.ToUpper(r))
		}
	}
	return result.String()
}

// Description canonicalizes a part description for similarity scoring:
// lowercase, punctuation to spaces, collapsed whitespace.
func Description(s string) string {
	var result strings.Builder
	prevSpace := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			prevSpace = false
		} else if !prevSpace {
			result.WriteRune(' ')
			prevSpace = true
		}
	}
	return strings.TrimSpace(result.String())
}

// IsComplexPartNumber reports whether a normalized part number is distinctive
// enough to match across brands: longer than 5 characters and contains at
// least one digit.
func IsComplexPartNumber(norm string) bool {
	if len(norm) <= 5 {
		return false
	}
	for _, r := range norm {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
