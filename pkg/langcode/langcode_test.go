package langcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromISO639_1(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		// Two-letter codes
		{"english", "en", "eng"},
		{"japanese", "ja", "jpn"},
		{"french bibliographic", "fr", "fre"},
		{"german bibliographic", "de", "ger"},
		{"chinese bibliographic", "zh", "chi"},
		{"uppercase input", "JA", "jpn"},

		// Three-letter codes pass through lowercased
		{"already three letters", "jpn", "jpn"},
		{"three letters uppercase", "ENG", "eng"},
		{"unknown three letters", "xxx", "xxx"},

		// Unknowns and empties
		{"unknown two letters", "qq", "qq"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FromISO639_1(tt.input))
		})
	}
}

func TestFromName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"japanese", "Japanese", "jpn"},
		{"english", "English", "eng"},
		{"mixed case", "gErMaN", "ger"},
		{"norwegian", "Norwegian", "nor"},
		{"unknown name passes through", "Klingon", "klingon"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FromName(tt.input))
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"name", "Japanese", "jpn"},
		{"two letter code", "ja", "jpn"},
		{"three letter code", "jpn", "jpn"},
		{"name beats code length rules", "hindi", "hin"},
		{"tmdb original language", "zh", "chi"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}
