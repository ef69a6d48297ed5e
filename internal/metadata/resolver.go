package metadata

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/jmylchreest/audiarr/internal/models"
	"github.com/jmylchreest/audiarr/pkg/langcode"
)

// MediaLookup is the TMDB surface the resolver needs.
type MediaLookup interface {
	GetTVShow(ctx context.Context, tvdbID, tmdbID int) (*TVShow, error)
	GetMovie(ctx context.Context, tmdbID int) (*Movie, error)
	SearchTV(ctx context.Context, query string, year int) ([]TVShow, error)
	SearchMovie(ctx context.Context, query string, year int) ([]Movie, error)
}

// ArrHints carries what a Sonarr or Radarr webhook knows about a file.
// Source identifies the sending arr.
type ArrHints struct {
	Source           models.MetadataSource
	MediaType        models.MediaType
	Title            string
	Year             int
	TMDBID           int
	TVDBID           int
	OriginalLanguage string
}

// Resolver resolves a file's original language before jobs are enqueued.
// Resolution never errors; an unresolved file yields Source none and the
// selector falls back to the configured priority list.
type Resolver struct {
	lookup MediaLookup
	logger *slog.Logger
}

// NewResolver creates a resolver. lookup may be nil when TMDB is disabled;
// only payload-provided languages resolve then.
func NewResolver(lookup MediaLookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{lookup: lookup, logger: logger}
}

// Resolve returns metadata for the file. Precedence: a language carried in
// the webhook payload itself, then the webhook's ids resolved via TMDB, then
// filename parsing plus a TMDB search. The result is never nil.
func (r *Resolver) Resolve(ctx context.Context, filePath string, hints *ArrHints) *models.MediaMetadata {
	if hints != nil && hints.OriginalLanguage != "" {
		meta := &models.MediaMetadata{
			OriginalLanguage: langcode.Normalize(hints.OriginalLanguage),
			Source:           hints.Source,
			MediaType:        hints.MediaType,
			Title:            hints.Title,
			Year:             hints.Year,
			TMDBID:           hints.TMDBID,
			TVDBID:           hints.TVDBID,
		}
		r.logger.Info("resolved metadata from webhook payload",
			slog.String("file", filePath),
			slog.String("metadata", meta.String()),
		)
		return meta
	}

	if hints != nil && r.lookup != nil {
		if meta := r.resolveFromArr(ctx, hints); meta != nil {
			r.logger.Info("resolved metadata from arr hints and tmdb",
				slog.String("file", filePath),
				slog.String("metadata", meta.String()),
			)
			return meta
		}
	}

	if r.lookup != nil {
		if meta := r.resolveFromFilename(ctx, filePath); meta != nil {
			r.logger.Info("resolved metadata from filename and tmdb",
				slog.String("file", filePath),
				slog.String("metadata", meta.String()),
			)
			return meta
		}
	}

	r.logger.Debug("no metadata resolved, priority list will decide",
		slog.String("file", filePath),
	)
	return &models.MediaMetadata{Source: models.MetadataSourceNone}
}

// resolveFromArr looks up the ids a webhook provided.
func (r *Resolver) resolveFromArr(ctx context.Context, hints *ArrHints) *models.MediaMetadata {
	switch hints.MediaType {
	case models.MediaTypeTV:
		show, err := r.lookup.GetTVShow(ctx, hints.TVDBID, hints.TMDBID)
		if err != nil {
			r.logger.Warn("tv lookup failed",
				slog.Int("tmdb_id", hints.TMDBID),
				slog.Int("tvdb_id", hints.TVDBID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if show == nil {
			return nil
		}
		return metadataFromTVShow(show, models.MetadataSourceTMDB)

	case models.MediaTypeMovie:
		if hints.TMDBID == 0 {
			r.logger.Warn("movie hints missing tmdb id", slog.String("title", hints.Title))
			return nil
		}
		movie, err := r.lookup.GetMovie(ctx, hints.TMDBID)
		if err != nil {
			r.logger.Warn("movie lookup failed",
				slog.Int("tmdb_id", hints.TMDBID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if movie == nil {
			return nil
		}
		return metadataFromMovie(movie, models.MetadataSourceTMDB)
	}

	r.logger.Warn("arr hints missing media type")
	return nil
}

// resolveFromFilename parses the filename and searches TMDB, taking the
// first search result as the best match.
func (r *Resolver) resolveFromFilename(ctx context.Context, filePath string) *models.MediaMetadata {
	parsed := ParseFilename(filepath.Base(filePath))
	if parsed == nil {
		r.logger.Debug("could not parse filename", slog.String("file", filePath))
		return nil
	}

	r.logger.Debug("parsed filename",
		slog.String("title", parsed.Title),
		slog.String("media_type", string(parsed.MediaType)),
		slog.Int("year", parsed.Year),
	)

	switch parsed.MediaType {
	case models.MediaTypeTV:
		results, err := r.lookup.SearchTV(ctx, parsed.Title, parsed.Year)
		if err != nil {
			r.logger.Warn("tv search failed",
				slog.String("title", parsed.Title),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if len(results) == 0 {
			r.logger.Debug("no tmdb search results", slog.String("title", parsed.Title))
			return nil
		}
		// Fetch the full record so the detail cache fills too.
		show, err := r.lookup.GetTVShow(ctx, 0, results[0].ID)
		if err != nil {
			r.logger.Warn("tv lookup failed",
				slog.Int("tmdb_id", results[0].ID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if show == nil {
			return nil
		}
		return metadataFromTVShow(show, models.MetadataSourceHeuristic)

	case models.MediaTypeMovie:
		results, err := r.lookup.SearchMovie(ctx, parsed.Title, parsed.Year)
		if err != nil {
			r.logger.Warn("movie search failed",
				slog.String("title", parsed.Title),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if len(results) == 0 {
			r.logger.Debug("no tmdb search results", slog.String("title", parsed.Title))
			return nil
		}
		movie, err := r.lookup.GetMovie(ctx, results[0].ID)
		if err != nil {
			r.logger.Warn("movie lookup failed",
				slog.Int("tmdb_id", results[0].ID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if movie == nil {
			return nil
		}
		return metadataFromMovie(movie, models.MetadataSourceHeuristic)
	}

	return nil
}

func metadataFromTVShow(show *TVShow, source models.MetadataSource) *models.MediaMetadata {
	return &models.MediaMetadata{
		OriginalLanguage: langcode.Normalize(show.OriginalLanguage),
		Source:           source,
		MediaType:        models.MediaTypeTV,
		Title:            show.Name,
		Year:             yearFromDate(show.FirstAirDate),
		TMDBID:           show.ID,
	}
}

func metadataFromMovie(movie *Movie, source models.MetadataSource) *models.MediaMetadata {
	return &models.MediaMetadata{
		OriginalLanguage: langcode.Normalize(movie.OriginalLanguage),
		Source:           source,
		MediaType:        models.MediaTypeMovie,
		Title:            movie.Title,
		Year:             yearFromDate(movie.ReleaseDate),
		TMDBID:           movie.ID,
	}
}

// yearFromDate extracts the year from a TMDB date string ("2023-04-01").
func yearFromDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
