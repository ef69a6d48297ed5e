package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/audiarr/internal/metadata"
	"github.com/jmylchreest/audiarr/internal/models"
	"github.com/jmylchreest/audiarr/internal/queue"
)

// WebhookHandler handles Sonarr and Radarr webhook deliveries. Payloads are
// read raw so the HMAC signature covers the exact bytes sent.
type WebhookHandler struct {
	queue      *queue.Manager
	resolver   *metadata.Resolver
	pathMapper *metadata.PathMapper
	secret     string
	logger     *slog.Logger
}

// NewWebhookHandler creates a webhook handler. resolver and pathMapper are
// required; construct the resolver with a nil lookup when TMDB is disabled.
// An empty secret disables signature verification.
func NewWebhookHandler(q *queue.Manager, resolver *metadata.Resolver, pathMapper *metadata.PathMapper, secret string, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		queue:      q,
		resolver:   resolver,
		pathMapper: pathMapper,
		secret:     secret,
		logger:     logger,
	}
}

// Register registers the webhook routes with the API.
func (h *WebhookHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "sonarrWebhook",
		Method:      "POST",
		Path:        "/webhook/sonarr",
		Summary:     "Sonarr webhook",
		Description: "Queues the episode files of a Sonarr import event for processing",
		Tags:        []string{"Webhooks"},
	}, h.Sonarr)

	huma.Register(api, huma.Operation{
		OperationID: "radarrWebhook",
		Method:      "POST",
		Path:        "/webhook/radarr",
		Summary:     "Radarr webhook",
		Description: "Queues the movie file of a Radarr import event for processing",
		Tags:        []string{"Webhooks"},
	}, h.Radarr)
}

// arrLanguage is the language object both arrs embed in series/movie data.
type arrLanguage struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type sonarrSeries struct {
	ID               int          `json:"id"`
	Title            string       `json:"title"`
	TVDBID           int          `json:"tvdbId"`
	TMDBID           int          `json:"tmdbId"`
	OriginalLanguage *arrLanguage `json:"originalLanguage"`
}

type sonarrEpisodeFile struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// sonarrWebhookPayload is the subset of the Sonarr webhook schema audiarr
// consumes. EpisodeFiles is plural: season-pack imports deliver every file
// in one event.
type sonarrWebhookPayload struct {
	EventType    string              `json:"eventType"`
	Series       *sonarrSeries       `json:"series"`
	EpisodeFiles []sonarrEpisodeFile `json:"episodeFiles"`
}

type radarrMovie struct {
	ID               int          `json:"id"`
	Title            string       `json:"title"`
	Year             int          `json:"year"`
	TMDBID           int          `json:"tmdbId"`
	OriginalLanguage *arrLanguage `json:"originalLanguage"`
}

type radarrMovieFile struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

type radarrWebhookPayload struct {
	EventType string           `json:"eventType"`
	Movie     *radarrMovie     `json:"movie"`
	MovieFile *radarrMovieFile `json:"movieFile"`
}

// SonarrWebhookInput carries the raw body plus the signature header.
type SonarrWebhookInput struct {
	Signature string `header:"X-Webhook-Signature" doc:"Hex HMAC-SHA256 of the request body"`
	RawBody   []byte
}

// RadarrWebhookInput carries the raw body plus the signature header.
type RadarrWebhookInput struct {
	Signature string `header:"X-Webhook-Signature" doc:"Hex HMAC-SHA256 of the request body"`
	RawBody   []byte
}

// WebhookOutput is the output for the webhook endpoints.
type WebhookOutput struct {
	Body WebhookResponse
}

// Sonarr handles a Sonarr webhook delivery. Every episode file in the
// payload becomes one high-priority job under a shared webhook id.
func (h *WebhookHandler) Sonarr(ctx context.Context, input *SonarrWebhookInput) (*WebhookOutput, error) {
	if err := h.verify(input.RawBody, input.Signature); err != nil {
		return nil, err
	}

	var payload sonarrWebhookPayload
	if err := json.Unmarshal(input.RawBody, &payload); err != nil {
		return nil, huma.Error400BadRequest("invalid webhook payload", err)
	}

	h.logger.Info("sonarr webhook received",
		slog.String("event_type", payload.EventType),
		slog.String("series", payload.seriesTitle()),
		slog.Int("files", len(payload.EpisodeFiles)),
	)

	paths := make([]string, 0, len(payload.EpisodeFiles))
	for _, f := range payload.EpisodeFiles {
		if f.Path != "" {
			paths = append(paths, f.Path)
		}
	}
	if len(paths) == 0 {
		return &WebhookOutput{Body: WebhookResponse{
			Status:  "rejected",
			Message: "no episode files in payload",
		}}, nil
	}

	hints := &metadata.ArrHints{
		Source:    models.MetadataSourceSonarr,
		MediaType: models.MediaTypeTV,
	}
	if payload.Series != nil {
		hints.Title = payload.Series.Title
		hints.TVDBID = payload.Series.TVDBID
		hints.TMDBID = payload.Series.TMDBID
		if payload.Series.OriginalLanguage != nil {
			hints.OriginalLanguage = payload.Series.OriginalLanguage.Name
		}
	}

	template := queue.SubmitRequest{
		Priority:    models.JobPriorityHigh,
		Source:      models.JobSourceSonarr,
		SeriesTitle: payload.seriesTitle(),
	}
	return &WebhookOutput{Body: h.enqueue(ctx, paths, hints, template)}, nil
}

// Radarr handles a Radarr webhook delivery.
func (h *WebhookHandler) Radarr(ctx context.Context, input *RadarrWebhookInput) (*WebhookOutput, error) {
	if err := h.verify(input.RawBody, input.Signature); err != nil {
		return nil, err
	}

	var payload radarrWebhookPayload
	if err := json.Unmarshal(input.RawBody, &payload); err != nil {
		return nil, huma.Error400BadRequest("invalid webhook payload", err)
	}

	h.logger.Info("radarr webhook received",
		slog.String("event_type", payload.EventType),
		slog.String("movie", payload.movieTitle()),
	)

	if payload.MovieFile == nil || payload.MovieFile.Path == "" {
		return &WebhookOutput{Body: WebhookResponse{
			Status:  "rejected",
			Message: "no movie file in payload",
		}}, nil
	}

	hints := &metadata.ArrHints{
		Source:    models.MetadataSourceRadarr,
		MediaType: models.MediaTypeMovie,
	}
	if payload.Movie != nil {
		hints.Title = payload.Movie.Title
		hints.Year = payload.Movie.Year
		hints.TMDBID = payload.Movie.TMDBID
		if payload.Movie.OriginalLanguage != nil {
			hints.OriginalLanguage = payload.Movie.OriginalLanguage.Name
		}
	}

	template := queue.SubmitRequest{
		Priority:   models.JobPriorityHigh,
		Source:     models.JobSourceRadarr,
		MovieTitle: payload.movieTitle(),
	}
	return &WebhookOutput{Body: h.enqueue(ctx, []string{payload.MovieFile.Path}, hints, template)}, nil
}

// enqueue maps the remote paths, resolves metadata once for the delivery,
// and submits each file. Files that fail admission are logged and skipped;
// they never fail the webhook as a whole.
func (h *WebhookHandler) enqueue(ctx context.Context, remotePaths []string, hints *metadata.ArrHints, template queue.SubmitRequest) WebhookResponse {
	local := make([]string, 0, len(remotePaths))
	for _, p := range remotePaths {
		local = append(local, h.pathMapper.Map(p))
	}

	// All files of one delivery share the series/movie, so one resolution
	// serves them all.
	meta := h.resolver.Resolve(ctx, local[0], hints)

	webhookID := models.NewWebhookID()
	jobIDs := make([]string, 0, len(local))
	for _, path := range local {
		req := template
		req.Path = path
		req.WebhookID = webhookID
		req.OriginalLanguage = meta.OriginalLanguage
		if meta.TMDBID != 0 {
			id := meta.TMDBID
			req.TMDBID = &id
		}

		job, err := h.queue.Submit(ctx, req)
		if err != nil {
			h.logger.Warn("webhook file rejected",
				slog.String("webhook_id", webhookID),
				slog.String("file", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		jobIDs = append(jobIDs, job.JobID)
	}

	if len(jobIDs) == 0 {
		return WebhookResponse{
			Status:  "rejected",
			Message: "no files could be queued",
		}
	}

	h.logger.Info("webhook accepted",
		slog.String("webhook_id", webhookID),
		slog.Int("files_queued", len(jobIDs)),
	)
	return WebhookResponse{
		Status:      "accepted",
		WebhookID:   webhookID,
		JobIDs:      jobIDs,
		FilesQueued: len(jobIDs),
		Message:     fmt.Sprintf("%d file(s) queued for processing", len(jobIDs)),
	}
}

// verify checks the HMAC-SHA256 signature over the raw body. A configured
// secret makes the header mandatory.
func (h *WebhookHandler) verify(body []byte, signature string) error {
	if h.secret == "" {
		return nil
	}
	if signature == "" {
		h.logger.Warn("missing webhook signature")
		return huma.Error401Unauthorized("missing signature")
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		h.logger.Warn("invalid webhook signature")
		return huma.Error401Unauthorized("invalid signature")
	}
	return nil
}

func (p *sonarrWebhookPayload) seriesTitle() string {
	if p.Series == nil {
		return ""
	}
	return p.Series.Title
}

func (p *radarrWebhookPayload) movieTitle() string {
	if p.Movie == nil {
		return ""
	}
	return p.Movie.Title
}
