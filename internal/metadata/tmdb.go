// Package metadata resolves the original language of media files. Resolution
// tries Sonarr/Radarr webhook hints plus a TMDB lookup first, then filename
// heuristics plus a TMDB search, and reports an unresolved result when
// neither works so the selector can fall back to the priority list.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jmylchreest/audiarr/internal/config"
	"github.com/jmylchreest/audiarr/internal/httpclient"
	"github.com/jmylchreest/audiarr/internal/repository"
	"github.com/jmylchreest/audiarr/internal/version"
)

// DefaultBaseURL is the production TMDB API endpoint.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// TVShow is the subset of a TMDB TV response the resolver uses. The same
// shape is returned by detail lookups and search results.
type TVShow struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	OriginalLanguage string `json:"original_language"`
	FirstAirDate     string `json:"first_air_date"`
}

// Movie is the subset of a TMDB movie response the resolver uses.
type Movie struct {
	ID               int    `json:"id"`
	Title            string `json:"title"`
	OriginalLanguage string `json:"original_language"`
	ReleaseDate      string `json:"release_date"`
}

type tvSearchResponse struct {
	Results []TVShow `json:"results"`
}

type movieSearchResponse struct {
	Results []Movie `json:"results"`
}

type findResponse struct {
	TVResults []TVShow `json:"tv_results"`
}

// tvdbConversion is the cached shape of a TVDB to TMDB id mapping.
type tvdbConversion struct {
	TMDBID int `json:"tmdb_id"`
}

// TMDBClient looks up media details on TMDB. Detail and id-conversion
// responses are cached in the metadata_cache table under kind-prefixed keys;
// searches are never cached. A missing title (HTTP 404) is not an error:
// lookups return nil so the caller can fall through to the next source.
type TMDBClient struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
	cache   repository.MetadataCacheRepository
	ttl     time.Duration
	logger  *slog.Logger
}

// NewTMDBClient creates a TMDB client. The cache repository may be nil, in
// which case every lookup goes to the API.
func NewTMDBClient(cfg config.TMDBConfig, cache repository.MetadataCacheRepository, logger *slog.Logger) *TMDBClient {
	if logger == nil {
		logger = slog.Default()
	}

	hcfg := httpclient.DefaultConfig()
	hcfg.UserAgent = version.UserAgent()
	hcfg.Logger = logger

	return &TMDBClient{
		apiKey:  cfg.APIKey,
		baseURL: DefaultBaseURL,
		client:  httpclient.New(hcfg),
		cache:   cache,
		ttl:     cfg.CacheTTL(),
		logger:  logger,
	}
}

// WithBaseURL overrides the API endpoint. Used in tests.
func (c *TMDBClient) WithBaseURL(baseURL string) *TMDBClient {
	c.baseURL = baseURL
	return c
}

// GetTVShow fetches TV show details by TMDB id, or by TVDB id when that is
// all a Sonarr webhook provided. Returns nil without error when the show
// cannot be found.
func (c *TMDBClient) GetTVShow(ctx context.Context, tvdbID, tmdbID int) (*TVShow, error) {
	if tvdbID == 0 && tmdbID == 0 {
		c.logger.Warn("tv lookup requested without tvdb or tmdb id")
		return nil, nil
	}

	cacheKey := fmt.Sprintf("tv_%d", tmdbID)
	if tmdbID == 0 {
		cacheKey = fmt.Sprintf("tv_tvdb_%d", tvdbID)
	}

	var show TVShow
	if c.cacheGet(ctx, cacheKey, &show) {
		return &show, nil
	}

	if tmdbID == 0 {
		tmdbID = c.findTMDBFromTVDB(ctx, tvdbID)
		if tmdbID == 0 {
			c.logger.Warn("could not resolve tmdb id", slog.Int("tvdb_id", tvdbID))
			return nil, nil
		}
	}

	found, err := c.get(ctx, "/tv/"+strconv.Itoa(tmdbID), nil, &show)
	if err != nil {
		return nil, err
	}
	if !found {
		c.logger.Warn("tv show not found on tmdb", slog.Int("tmdb_id", tmdbID))
		return nil, nil
	}

	c.logger.Info("fetched tv show from tmdb",
		slog.Int("tmdb_id", tmdbID),
		slog.String("title", show.Name),
		slog.String("original_language", show.OriginalLanguage),
	)
	c.cacheSet(ctx, cacheKey, &show)
	return &show, nil
}

// GetMovie fetches movie details by TMDB id. Returns nil without error when
// the movie cannot be found.
func (c *TMDBClient) GetMovie(ctx context.Context, tmdbID int) (*Movie, error) {
	cacheKey := fmt.Sprintf("movie_%d", tmdbID)

	var movie Movie
	if c.cacheGet(ctx, cacheKey, &movie) {
		return &movie, nil
	}

	found, err := c.get(ctx, "/movie/"+strconv.Itoa(tmdbID), nil, &movie)
	if err != nil {
		return nil, err
	}
	if !found {
		c.logger.Warn("movie not found on tmdb", slog.Int("tmdb_id", tmdbID))
		return nil, nil
	}

	c.logger.Info("fetched movie from tmdb",
		slog.Int("tmdb_id", tmdbID),
		slog.String("title", movie.Title),
		slog.String("original_language", movie.OriginalLanguage),
	)
	c.cacheSet(ctx, cacheKey, &movie)
	return &movie, nil
}

// SearchTV searches TMDB for TV shows by title, optionally filtered by first
// air year. May return an empty slice.
func (c *TMDBClient) SearchTV(ctx context.Context, query string, year int) ([]TVShow, error) {
	params := url.Values{}
	params.Set("query", query)
	if year != 0 {
		params.Set("first_air_date_year", strconv.Itoa(year))
	}

	var out tvSearchResponse
	found, err := c.get(ctx, "/search/tv", params, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	c.logger.Info("searched tmdb for tv show",
		slog.String("query", query),
		slog.Int("year", year),
		slog.Int("result_count", len(out.Results)),
	)
	return out.Results, nil
}

// SearchMovie searches TMDB for movies by title, optionally filtered by
// release year. May return an empty slice.
func (c *TMDBClient) SearchMovie(ctx context.Context, query string, year int) ([]Movie, error) {
	params := url.Values{}
	params.Set("query", query)
	if year != 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var out movieSearchResponse
	found, err := c.get(ctx, "/search/movie", params, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	c.logger.Info("searched tmdb for movie",
		slog.String("query", query),
		slog.Int("year", year),
		slog.Int("result_count", len(out.Results)),
	)
	return out.Results, nil
}

// findTMDBFromTVDB converts a TVDB id to a TMDB id via the external-id
// lookup. Failures degrade to an unresolved id rather than an error; a
// successful conversion is cached.
func (c *TMDBClient) findTMDBFromTVDB(ctx context.Context, tvdbID int) int {
	cacheKey := fmt.Sprintf("tvdb_to_tmdb_%d", tvdbID)

	var conv tvdbConversion
	if c.cacheGet(ctx, cacheKey, &conv) {
		return conv.TMDBID
	}

	params := url.Values{}
	params.Set("external_source", "tvdb_id")

	var out findResponse
	found, err := c.get(ctx, "/find/"+strconv.Itoa(tvdbID), params, &out)
	if err != nil {
		c.logger.Error("tvdb to tmdb conversion failed",
			slog.Int("tvdb_id", tvdbID),
			slog.String("error", err.Error()),
		)
		return 0
	}
	if !found || len(out.TVResults) == 0 {
		c.logger.Warn("no tmdb results for tvdb id", slog.Int("tvdb_id", tvdbID))
		return 0
	}

	tmdbID := out.TVResults[0].ID
	c.logger.Info("converted tvdb id to tmdb id",
		slog.Int("tvdb_id", tvdbID),
		slog.Int("tmdb_id", tmdbID),
	)
	c.cacheSet(ctx, cacheKey, &tvdbConversion{TMDBID: tmdbID})
	return tmdbID
}

// get performs a GET against the TMDB API and decodes the body into out.
// The api_key is appended here so callers never handle it. A 404 is reported
// through the found return, not as an error.
func (c *TMDBClient) get(ctx context.Context, path string, params url.Values, out any) (found bool, err error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	resp, err := c.client.Get(ctx, c.baseURL+path+"?"+params.Encode())
	if err != nil {
		return false, fmt.Errorf("tmdb request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("tmdb request %s: status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("tmdb response %s: %w", path, err)
	}
	return true, nil
}

func (c *TMDBClient) cacheGet(ctx context.Context, key string, out any) bool {
	if c.cache == nil {
		return false
	}
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(entry.Value), out); err != nil {
		c.logger.Warn("discarding undecodable cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}
	c.logger.Debug("tmdb cache hit", slog.String("key", key))
	return true
}

func (c *TMDBClient) cacheSet(ctx context.Context, key string, v any) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, string(raw), c.ttl); err != nil {
		c.logger.Warn("caching tmdb response failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
