package selector

import (
	"testing"

	"github.com/jmylchreest/audiarr/internal/config"
	"github.com/jmylchreest/audiarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tracksFor(langs ...string) []models.AudioTrack {
	tracks := make([]models.AudioTrack, len(langs))
	for i, lang := range langs {
		tracks[i] = models.AudioTrack{
			Index:       i,
			StreamIndex: i + 1,
			Codec:       "aac",
			Language:    lang,
			IsDefault:   i == 0,
		}
	}
	return tracks
}

func newSelector(global []string, overrides ...config.PathOverride) *Selector {
	cfg := config.Default()
	cfg.LanguagePriority = global
	cfg.PathOverrides = overrides
	return New(cfg, nil)
}

func TestSelect_OriginalLanguageWins(t *testing.T) {
	s := newSelector([]string{"eng", "jpn", "ita"})
	tracks := tracksFor("eng", "jpn", "ita")

	track, reason := s.Select(tracks, "/media/show/s01e01.mkv", "jpn")
	require.NotNil(t, track)
	assert.Equal(t, 1, track.Index)
	assert.Equal(t, "jpn", track.Language)
	assert.Equal(t, models.SelectionReasonOriginalLanguage, reason)
}

func TestSelect_OriginalLanguageFirstByIndex(t *testing.T) {
	s := newSelector([]string{"eng"})
	// Two jpn tracks: stereo and surround; the lower index wins
	tracks := tracksFor("eng", "jpn", "jpn")

	track, reason := s.Select(tracks, "/media/show.mkv", "jpn")
	require.NotNil(t, track)
	assert.Equal(t, 1, track.Index)
	assert.Equal(t, models.SelectionReasonOriginalLanguage, reason)
}

func TestSelect_FallsBackToPriorityList(t *testing.T) {
	s := newSelector([]string{"ger", "eng"})
	tracks := tracksFor("eng", "spa")

	// Original language korean is not present; priority list applies and
	// ger has no track either, so eng wins
	track, reason := s.Select(tracks, "/media/show.mkv", "kor")
	require.NotNil(t, track)
	assert.Equal(t, 0, track.Index)
	assert.Equal(t, "eng", track.Language)
	assert.Equal(t, models.SelectionReasonPriorityList, reason)
}

func TestSelect_PriorityListOrderWins(t *testing.T) {
	s := newSelector([]string{"jpn", "eng"})
	tracks := tracksFor("eng", "jpn")

	track, reason := s.Select(tracks, "/media/show.mkv", "")
	require.NotNil(t, track)
	assert.Equal(t, "jpn", track.Language)
	assert.Equal(t, models.SelectionReasonPriorityList, reason)
}

func TestSelect_PathOverride(t *testing.T) {
	s := newSelector(
		[]string{"eng", "jpn"},
		config.PathOverride{Path: "/media/anime/**", LanguagePriority: []string{"jpn", "eng"}},
	)
	tracks := tracksFor("eng", "jpn")

	// Inside the override subtree, jpn outranks eng
	track, reason := s.Select(tracks, "/media/anime/Show/S01E01.mkv", "")
	require.NotNil(t, track)
	assert.Equal(t, "jpn", track.Language)
	assert.Equal(t, models.SelectionReasonPriorityList, reason)

	// Outside it, the global order applies
	track, _ = s.Select(tracks, "/media/tv/Show/S01E01.mkv", "")
	require.NotNil(t, track)
	assert.Equal(t, "eng", track.Language)
}

func TestSelect_FirstMatchingOverrideWins(t *testing.T) {
	s := newSelector(
		[]string{"eng"},
		config.PathOverride{Path: "/media/anime/*", LanguagePriority: []string{"jpn"}},
		config.PathOverride{Path: "/media/*", LanguagePriority: []string{"fre"}},
	)
	tracks := tracksFor("fre", "jpn")

	track, _ := s.Select(tracks, "/media/anime/show.mkv", "")
	require.NotNil(t, track)
	assert.Equal(t, "jpn", track.Language)

	track, _ = s.Select(tracks, "/media/films/movie.mkv", "")
	require.NotNil(t, track)
	assert.Equal(t, "fre", track.Language)
}

func TestSelect_NoMatch(t *testing.T) {
	s := newSelector([]string{"ger", "fre"})
	tracks := tracksFor("eng", "spa")

	track, reason := s.Select(tracks, "/media/show.mkv", "kor")
	assert.Nil(t, track)
	assert.Equal(t, models.SelectionReasonNoMatch, reason)
}

func TestSelect_NoTracks(t *testing.T) {
	s := newSelector([]string{"eng"})

	track, reason := s.Select(nil, "/media/show.mkv", "eng")
	assert.Nil(t, track)
	assert.Equal(t, models.SelectionReasonNoMatch, reason)
}

func TestSelect_Deterministic(t *testing.T) {
	s := newSelector([]string{"eng", "jpn"})
	tracks := tracksFor("eng", "jpn", "ita")

	first, firstReason := s.Select(tracks, "/media/show.mkv", "ita")
	for i := 0; i < 10; i++ {
		track, reason := s.Select(tracks, "/media/show.mkv", "ita")
		require.NotNil(t, track)
		assert.Equal(t, first.Index, track.Index)
		assert.Equal(t, firstReason, reason)
	}
}

