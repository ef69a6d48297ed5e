package models

import "fmt"

// MetadataSource identifies where resolved media metadata came from.
type MetadataSource string

const (
	// MetadataSourceSonarr marks metadata taken directly from a Sonarr
	// webhook payload, no lookup needed.
	MetadataSourceSonarr MetadataSource = "sonarr"
	// MetadataSourceRadarr marks metadata taken directly from a Radarr
	// webhook payload, no lookup needed.
	MetadataSourceRadarr MetadataSource = "radarr"
	// MetadataSourceTMDB marks metadata resolved through webhook hints and
	// a TMDB lookup.
	MetadataSourceTMDB MetadataSource = "tmdb"
	// MetadataSourceHeuristic marks metadata resolved by parsing the
	// filename and searching TMDB.
	MetadataSourceHeuristic MetadataSource = "heuristic"
	// MetadataSourceNone marks files where nothing could be resolved; the
	// selector falls back to the configured priority list alone.
	MetadataSourceNone MetadataSource = "none"
)

// MediaType distinguishes episodic from feature content.
type MediaType string

const (
	// MediaTypeTV is episodic content tracked by Sonarr.
	MediaTypeTV MediaType = "tv"
	// MediaTypeMovie is feature content tracked by Radarr.
	MediaTypeMovie MediaType = "movie"
)

// MediaMetadata is what resolution knows about a media file. A zero value
// with Source set to MetadataSourceNone means nothing was resolved.
// OriginalLanguage is an ISO 639-2/B code once normalized.
type MediaMetadata struct {
	OriginalLanguage string         `json:"original_language,omitempty"`
	Source           MetadataSource `json:"source"`
	MediaType        MediaType      `json:"media_type,omitempty"`
	Title            string         `json:"title,omitempty"`
	Year             int            `json:"year,omitempty"`
	TMDBID           int            `json:"tmdb_id,omitempty"`
	TVDBID           int            `json:"tvdb_id,omitempty"`
}

// String returns a human-readable summary for logging.
func (m *MediaMetadata) String() string {
	if m.Title == "" {
		return fmt.Sprintf("unknown media (source: %s)", m.Source)
	}
	s := m.Title
	if m.Year != 0 {
		s += fmt.Sprintf(" (%d)", m.Year)
	}
	if m.OriginalLanguage != "" {
		s += fmt.Sprintf(" [original: %s]", m.OriginalLanguage)
	}
	return fmt.Sprintf("%s (source: %s)", s, m.Source)
}
