package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"uppercase and strip punctuation", "br-4521", "BR4521"},
		{"strip leading zeros", "00123-A", "123A"},
		{"already normalized", "123A", "123A"},
		{"spaces and dots", "ab 12.34", "AB1234"},
		{"empty string", "", ""},
		{"all zeros", "000", ""},
		{"zeros inside kept", "A00B", "A00B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PartNumber(tt.input))
		})
	}
}

func TestPartNumberMatchesAcrossFormats(t *testing.T) {
	// The two raw forms from different catalogs must collapse to one key
	assert.Equal(t, PartNumber("00123-A"), PartNumber("123A"))
	assert.Equal(t, PartNumber("BR-4521"), PartNumber("br4521"))
}

func TestLineCode(t *testing.T) {
	assert.Equal(t, "ACD", LineCode("ac-d"))
	assert.Equal(t, "0AB", LineCode("0ab")) // leading zeros kept
	assert.Equal(t, "", LineCode(""))
}

func TestDescription(t *testing.T) {
	assert.Equal(t, "front brake rotor", Description("Front, Brake/Rotor"))
	assert.Equal(t, "brake rotor", Description("  BRAKE   ROTOR  "))
	assert.Equal(t, "", Description("---"))
}

func TestIsComplexPartNumber(t *testing.T) {
	assert.True(t, IsComplexPartNumber("BR4521X"))
	assert.False(t, IsComplexPartNumber("BR45"))    // too short
	assert.False(t, IsComplexPartNumber("ABCDEFG")) // no digit
	assert.True(t, IsComplexPartNumber("1234567"))
	assert.False(t, IsComplexPartNumber(""))
}

func TestApplyChain(t *testing.T) {
	assert.Equal(t, "123A", ApplyChain(" 00123-a ", "trim", "part_number"))
}

func TestApplyUnknownNormalizerReturnsInput(t *testing.T) {
	assert.Equal(t, "abc", Apply("abc", "nope"))
}
