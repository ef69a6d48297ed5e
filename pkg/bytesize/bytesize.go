// Package bytesize formats and parses byte quantities using binary (1024)
// units, so log and error messages can say "1.5GB" instead of a raw count.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Size is a byte count.
type Size int64

// Binary unit constants.
const (
	B  Size = 1
	KB Size = 1 << 10
	MB Size = 1 << 20
	GB Size = 1 << 30
	TB Size = 1 << 40
	PB Size = 1 << 50
)

var units = []struct {
	suffix string
	value  Size
}{
	{"PB", PB},
	{"TB", TB},
	{"GB", GB},
	{"MB", MB},
	{"KB", KB},
}

var unitNames = map[string]Size{
	"b": B, "byte": B, "bytes": B,
	"k": KB, "kb": KB, "kib": KB,
	"m": MB, "mb": MB, "mib": MB,
	"g": GB, "gb": GB, "gib": GB,
	"t": TB, "tb": TB, "tib": TB,
	"p": PB, "pb": PB, "pib": PB,
}

// Format renders s with the largest unit that keeps the value at or above
// one, trimming trailing zeros: 512 -> "512B", 1536 -> "1.5KB".
func Format(s Size) string {
	if s == 0 {
		return "0B"
	}
	prefix := ""
	if s < 0 {
		prefix, s = "-", -s
	}
	for _, u := range units {
		if s < u.value {
			continue
		}
		v := strconv.FormatFloat(float64(s)/float64(u.value), 'f', 2, 64)
		v = strings.TrimRight(strings.TrimRight(v, "0"), ".")
		return prefix + v + u.suffix
	}
	return fmt.Sprintf("%s%dB", prefix, s)
}

// String implements fmt.Stringer.
func (s Size) String() string { return Format(s) }

// Bytes returns the raw byte count.
func (s Size) Bytes() int64 { return int64(s) }

// Parse reads a quantity like "500KB", "1.5 GB" or "1024" (a bare number is
// bytes). Unit names are case-insensitive and the IEC spellings KiB, MiB, …
// are accepted as their binary equivalents.
func Parse(in string) (Size, error) {
	s := strings.TrimSpace(in)
	if s == "" {
		return 0, fmt.Errorf("bytesize: empty string")
	}

	cut := len(s)
	for i, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			cut = i
			break
		}
	}
	num := strings.TrimSpace(s[:cut])
	unit := strings.TrimSpace(s[cut:])

	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number in %q", in)
	}

	mult := B
	if unit != "" {
		var ok bool
		mult, ok = unitNames[strings.ToLower(unit)]
		if !ok {
			return 0, fmt.Errorf("bytesize: unknown unit %q", unit)
		}
	}
	return Size(value * float64(mult)), nil
}

// MustParse is Parse for hardcoded values; it panics on error.
func MustParse(s string) Size {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}
