// Package glob implements shell-style pattern matching with semantics that
// differ from path/filepath.Match in one important way: wildcards cross path
// separators. A configured override like `/media/anime/**` or a scan pattern
// like `*.mkv` therefore matches whole subtrees, the behavior users expect
// from fnmatch-style tooling.
package glob

import (
	"regexp"
	"strings"
	"sync"
)

// Match reports whether path matches the shell-style pattern. `*` and `?`
// cross path separators; character classes `[seq]` and `[!seq]` pass through
// to the regexp engine. Malformed patterns match nothing.
func Match(pattern, path string) bool {
	re, err := compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

var (
	mu    sync.Mutex
	cache = map[string]*regexp.Regexp{}
)

// compile translates a glob to an anchored regexp, caching compilations; the
// same few configured patterns are evaluated for every job.
func compile(pattern string) (*regexp.Regexp, error) {
	mu.Lock()
	defer mu.Unlock()

	if re, ok := cache[pattern]; ok {
		return re, nil
	}

	re, err := regexp.Compile(toRegexp(pattern))
	if err != nil {
		return nil, err
	}
	cache[pattern] = re
	return re, nil
}

// toRegexp converts the pattern: `*` -> `.*`, `?` -> `.`, `[...]` kept as a
// class, everything else quoted.
func toRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString(`^`)

	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				b.WriteString(regexp.QuoteMeta(string(c)))
				continue
			}
			class := pattern[i : i+end+1]
			// Negation spelled [!...] in glob, [^...] in regexp
			if strings.HasPrefix(class, "[!") {
				class = "[^" + class[2:]
			}
			b.WriteString(class)
			i += end
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	b.WriteString(`$`)
	return b.String()
}
