// Package langcode normalizes language identifiers to ISO 639-2/B
// three-letter codes, the form embedded audio tracks carry in MKV and MP4
// containers.
//
// Inputs arrive in three shapes:
//   - ISO 639-1 two-letter codes ("ja"), as returned by TMDB
//   - ISO 639-2 three-letter codes ("jpn"), as stored in container metadata
//   - English language names ("Japanese"), as sent by Sonarr v4 webhooks
//
// The bibliographic (639-2/B) variants are used throughout because that is
// what muxers write: "fre" not "fra", "ger" not "deu", "chi" not "zho".
package langcode

import "strings"

// iso639_1To2 maps ISO 639-1 two-letter codes to ISO 639-2/B.
var iso639_1To2 = map[string]string{
	"en": "eng", // English
	"es": "spa", // Spanish
	"fr": "fre", // French
	"de": "ger", // German
	"it": "ita", // Italian
	"pt": "por", // Portuguese
	"ru": "rus", // Russian
	"ja": "jpn", // Japanese
	"ko": "kor", // Korean
	"zh": "chi", // Chinese
	"ar": "ara", // Arabic
	"hi": "hin", // Hindi
	"nl": "dut", // Dutch
	"pl": "pol", // Polish
	"tr": "tur", // Turkish
	"sv": "swe", // Swedish
	"da": "dan", // Danish
	"no": "nor", // Norwegian
	"fi": "fin", // Finnish
	"cs": "cze", // Czech
	"hu": "hun", // Hungarian
	"ro": "rum", // Romanian
	"th": "tha", // Thai
	"vi": "vie", // Vietnamese
	"id": "ind", // Indonesian
	"he": "heb", // Hebrew
	"el": "gre", // Greek
	"uk": "ukr", // Ukrainian
	"ca": "cat", // Catalan
	"sk": "slo", // Slovak
	"hr": "hrv", // Croatian
	"sr": "srp", // Serbian
	"bg": "bul", // Bulgarian
	"lt": "lit", // Lithuanian
	"lv": "lav", // Latvian
	"et": "est", // Estonian
	"sl": "slv", // Slovenian
	"fa": "per", // Persian
	"ms": "may", // Malay
	"ta": "tam", // Tamil
	"te": "tel", // Telugu
	"bn": "ben", // Bengali
	"mr": "mar", // Marathi
}

// nameTo639_2 maps lowercase English language names to ISO 639-2/B.
var nameTo639_2 = map[string]string{
	"english":    "eng",
	"spanish":    "spa",
	"french":     "fre",
	"german":     "ger",
	"italian":    "ita",
	"portuguese": "por",
	"russian":    "rus",
	"japanese":   "jpn",
	"korean":     "kor",
	"chinese":    "chi",
	"arabic":     "ara",
	"hindi":      "hin",
	"dutch":      "dut",
	"polish":     "pol",
	"turkish":    "tur",
	"swedish":    "swe",
	"danish":     "dan",
	"norwegian":  "nor",
	"finnish":    "fin",
	"czech":      "cze",
	"hungarian":  "hun",
	"romanian":   "rum",
	"thai":       "tha",
	"vietnamese": "vie",
	"indonesian": "ind",
	"hebrew":     "heb",
	"greek":      "gre",
	"ukrainian":  "ukr",
	"catalan":    "cat",
	"slovak":     "slo",
	"croatian":   "hrv",
	"serbian":    "srp",
	"bulgarian":  "bul",
	"lithuanian": "lit",
	"latvian":    "lav",
	"estonian":   "est",
	"slovenian":  "slv",
	"persian":    "per",
	"malay":      "may",
	"tamil":      "tam",
	"telugu":     "tel",
	"bengali":    "ben",
	"marathi":    "mar",
}

// FromISO639_1 converts a two-letter ISO 639-1 code to ISO 639-2/B.
// Three-letter inputs are lowercased and returned as-is. Unknown two-letter
// codes pass through lowercased so callers can still do exact matching.
func FromISO639_1(code string) string {
	if code == "" {
		return code
	}
	lower := strings.ToLower(code)
	if len(lower) == 3 {
		return lower
	}
	if three, ok := iso639_1To2[lower]; ok {
		return three
	}
	return lower
}

// FromName converts an English language name such as "Japanese" to its
// ISO 639-2/B code. Unknown names pass through lowercased.
func FromName(name string) string {
	if name == "" {
		return name
	}
	lower := strings.ToLower(name)
	if code, ok := nameTo639_2[lower]; ok {
		return code
	}
	return lower
}

// Normalize accepts any of the three input shapes and returns the ISO
// 639-2/B code. Names are tried first so "hindi" does not get treated as a
// bare code, then two- and three-letter code handling applies.
func Normalize(v string) string {
	if v == "" {
		return v
	}
	lower := strings.ToLower(v)
	if code, ok := nameTo639_2[lower]; ok {
		return code
	}
	return FromISO639_1(lower)
}
