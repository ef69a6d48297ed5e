// Package scanner discovers candidate video files for batch submission. It
// walks a directory tree applying glob patterns with pathlib-style semantics:
// `*` and `?` stay within one path segment, and a leading `**/` matches any
// number of directories. This is deliberately narrower than the matching used
// for configured path overrides, where wildcards cross separators.
package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultPatterns is the union scanned when no pattern is supplied.
var DefaultPatterns = []string{"*.mkv", "*.mp4"}

// Scan walks root and returns the regular files matching pattern, sorted and
// deduplicated. An empty pattern scans for the default container extensions.
// When recursive is set, the pattern gains a `**/` prefix unless it already
// has one, so `*.mkv` finds files at any depth.
func Scan(root string, pattern string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanning %s: not a directory", root)
	}

	patterns := DefaultPatterns
	if pattern != "" {
		patterns = []string{pattern}
	}
	if recursive {
		prefixed := make([]string, len(patterns))
		for i, p := range patterns {
			if !strings.HasPrefix(p, "**/") {
				p = "**/" + p
			}
			prefixed[i] = p
		}
		patterns = prefixed
	}

	seen := map[string]struct{}{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subdirectories are skipped, not fatal; one bad
			// mount point must not abort the whole scan.
			slog.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		for _, p := range patterns {
			if matchPattern(p, rel) {
				seen[path] = struct{}{}
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)

	slog.Debug("directory scan complete",
		"root", root, "recursive", recursive, "total_files", len(files))
	return files, nil
}

// matchPattern matches rel (slash-separated, relative to the scan root)
// against one pattern. A leading `**/` tries the remainder against every
// directory depth, including zero.
func matchPattern(pattern, rel string) bool {
	if suffix, ok := strings.CutPrefix(pattern, "**/"); ok {
		segments := strings.Split(rel, "/")
		for i := 0; i < len(segments); i++ {
			if matchLiteral(suffix, strings.Join(segments[i:], "/")) {
				return true
			}
		}
		return false
	}
	return matchLiteral(pattern, rel)
}

func matchLiteral(pattern, rel string) bool {
	ok, err := path.Match(pattern, rel)
	return err == nil && ok
}
