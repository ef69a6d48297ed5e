// Package selector picks the audio track that should carry the default flag.
// Selection is pure: the same tracks, path, and original language always
// produce the same answer.
package selector

import (
	"log/slog"

	"github.com/jmylchreest/audiarr/internal/config"
	"github.com/jmylchreest/audiarr/internal/glob"
	"github.com/jmylchreest/audiarr/internal/models"
)

// Selector applies the three selection rules: original language first, then
// the resolved priority list, then no match.
type Selector struct {
	globalPriority []string
	overrides      []config.PathOverride
	logger         *slog.Logger
}

// New creates a Selector from the language configuration.
func New(cfg *config.Config, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		globalPriority: cfg.LanguagePriority,
		overrides:      cfg.PathOverrides,
		logger:         logger,
	}
}

// Select returns the track to mark default and the reason for the choice.
// A nil track with reason no_match means nothing can be selected; the caller
// skips the file rather than failing it.
//
// Rule 1: the file's original language, when known and present, wins. Rule
// 2: otherwise the first code of the resolved priority list with a matching
// track wins. Ties within a rule go to the lowest track index.
func (s *Selector) Select(tracks []models.AudioTrack, path string, originalLanguage string) (*models.AudioTrack, string) {
	if len(tracks) == 0 {
		return nil, models.SelectionReasonNoMatch
	}

	if originalLanguage != "" {
		for i := range tracks {
			if tracks[i].Language == originalLanguage {
				s.logger.Debug("selected original language track",
					slog.String("path", path),
					slog.String("language", originalLanguage),
					slog.Int("track_index", tracks[i].Index))
				return &tracks[i], models.SelectionReasonOriginalLanguage
			}
		}
		s.logger.Debug("original language not present in tracks",
			slog.String("path", path),
			slog.String("original_language", originalLanguage))
	}

	priority := s.resolvePriority(path)
	for _, lang := range priority {
		for i := range tracks {
			if tracks[i].Language == lang {
				s.logger.Debug("selected track from priority list",
					slog.String("path", path),
					slog.String("language", lang),
					slog.Int("track_index", tracks[i].Index))
				return &tracks[i], models.SelectionReasonPriorityList
			}
		}
	}

	s.logger.Debug("no matching track",
		slog.String("path", path),
		slog.Any("priority", priority))
	return nil, models.SelectionReasonNoMatch
}

// resolvePriority returns the language priority for a path: the first
// matching path override wins, otherwise the global list.
func (s *Selector) resolvePriority(path string) []string {
	for _, override := range s.overrides {
		if glob.Match(override.Path, path) {
			return override.LanguagePriority
		}
	}
	return s.globalPriority
}
