package metadata

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/audiarr/internal/config"
)

// PathMapper rewrites remote paths sent by Sonarr/Radarr to local
// filesystem paths. The arrs often run in containers whose mounts do not
// match this daemon's view of the library.
type PathMapper struct {
	mappings []config.PathMapping
	logger   *slog.Logger
}

// NewPathMapper creates a path mapper from the configured mappings.
func NewPathMapper(mappings []config.PathMapping, logger *slog.Logger) *PathMapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &PathMapper{mappings: mappings, logger: logger}
}

// Map translates a remote path to a local one. Mappings are tried in
// configuration order; the first matching prefix wins. Prefixes match whole
// path components, so "/tv" covers "/tv/Show" but not "/tvx/Show". Unmapped
// paths pass through unchanged.
func (m *PathMapper) Map(remotePath string) string {
	for _, mapping := range m.mappings {
		rel, ok := relativeTo(remotePath, mapping.Remote)
		if !ok {
			continue
		}

		local := filepath.Join(mapping.Local, rel)
		m.logger.Debug("path mapped",
			slog.String("remote_path", remotePath),
			slog.String("remote_prefix", mapping.Remote),
			slog.String("local_prefix", mapping.Local),
			slog.String("local_path", local),
		)
		return local
	}

	if len(m.mappings) > 0 {
		m.logger.Warn("no path mapping matched, using original path",
			slog.String("remote_path", remotePath),
		)
	}
	return remotePath
}

// relativeTo returns the part of path below prefix, matching whole
// components only.
func relativeTo(path, prefix string) (string, bool) {
	p := filepath.Clean(path)
	pre := filepath.Clean(prefix)

	if p == pre {
		return ".", true
	}
	if !strings.HasSuffix(pre, string(filepath.Separator)) {
		pre += string(filepath.Separator)
	}
	if !strings.HasPrefix(p, pre) {
		return "", false
	}
	return p[len(pre):], true
}
