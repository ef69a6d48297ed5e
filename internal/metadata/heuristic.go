package metadata

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jmylchreest/audiarr/internal/models"
)

// ParsedName holds what filename parsing extracted.
type ParsedName struct {
	Title     string
	MediaType models.MediaType
	Season    int
	Episode   int
	Year      int
}

// Year sanity bounds for movie parsing; four digits outside this range are
// treated as part of the title, not a release year.
const (
	minMovieYear = 1900
	maxMovieYear = 2030
)

var (
	// "Show.Name.S01E01" and "Show Name - s01e01"
	tvSeasonEpisodePattern = regexp.MustCompile(`(?i)^(.+?)[.\s-]+S(\d+)E(\d+)`)
	// "Show.Name.1x01"
	tvCrossNotationPattern = regexp.MustCompile(`(?i)^(.+?)[.\s-]+(\d+)x(\d+)`)
	// "Movie.Name.2023" and "Movie Name (2023)"
	movieYearPattern = regexp.MustCompile(`^(.+?)[.\s-]+\(?(\d{4})\)?`)

	trailingYearPattern  = regexp.MustCompile(`\s*\(\d{4}\)$`)
	whitespaceRunPattern = regexp.MustCompile(`\s+`)
)

// ParseFilename extracts title, year and episode numbering from common
// release names such as "Show.Name.S01E01.1080p.mkv" or
// "Movie.Name.(2023).BluRay.mkv". Returns nil when no pattern matches.
func ParseFilename(filename string) *ParsedName {
	name := filename
	if idx := strings.LastIndex(name, "."); idx != -1 {
		name = name[:idx]
	}

	if parsed := parseTVShow(name); parsed != nil {
		return parsed
	}
	return parseMovie(name)
}

func parseTVShow(name string) *ParsedName {
	for _, pattern := range []*regexp.Regexp{tvSeasonEpisodePattern, tvCrossNotationPattern} {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		season, _ := strconv.Atoi(m[2])
		episode, _ := strconv.Atoi(m[3])
		return &ParsedName{
			Title:     cleanTitle(m[1]),
			MediaType: models.MediaTypeTV,
			Season:    season,
			Episode:   episode,
		}
	}
	return nil
}

func parseMovie(name string) *ParsedName {
	m := movieYearPattern.FindStringSubmatch(name)
	if m == nil {
		return nil
	}

	year, _ := strconv.Atoi(m[2])
	if year < minMovieYear || year > maxMovieYear {
		return nil
	}

	title := cleanTitle(m[1])
	// Drop a year that was captured as part of the title.
	title = trailingYearPattern.ReplaceAllString(title, "")

	return &ParsedName{
		Title:     title,
		MediaType: models.MediaTypeMovie,
		Year:      year,
	}
}

// cleanTitle turns separator characters into spaces and collapses runs.
func cleanTitle(title string) string {
	cleaned := strings.NewReplacer(".", " ", "_", " ").Replace(title)
	cleaned = whitespaceRunPattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
