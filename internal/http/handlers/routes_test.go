package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/audiarr/internal/metadata"
	"github.com/jmylchreest/audiarr/internal/queue"
)

// newTestAPI registers every handler on an in-memory API, mirroring the
// wiring the serve command performs. Requests go through the full huma
// request cycle, so raw-body capture, header binding and schema validation
// are exercised rather than bypassed.
func newTestAPI(t *testing.T, secret string) (humatest.TestAPI, *queue.Manager) {
	t.Helper()

	q, _ := newQueueManager(t)
	resolver := metadata.NewResolver(nil, newTestLogger())
	mapper := metadata.NewPathMapper(nil, newTestLogger())

	_, api := humatest.New(t)
	NewHealthHandler("1.2.3").WithQueue(q).Register(api)
	NewWebhookHandler(q, resolver, mapper, secret, newTestLogger()).Register(api)
	NewQueueHandler(q, &fakePool{total: 1, running: true}).Register(api)

	return api, q
}

func TestRoutes_SonarrWebhook(t *testing.T) {
	api, _ := newTestAPI(t, "s3cret")
	file := writeFile(t, t.TempDir(), "Show - S01E01.mkv")
	body := sonarrBody(t, map[string]any{"title": "Show", "tmdbId": 42}, file)

	resp := api.Post("/webhook/sonarr",
		"X-Webhook-Signature: "+sign("s3cret", body),
		bytes.NewReader(body))
	require.Equal(t, 200, resp.Code, resp.Body.String())

	var out WebhookResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, "accepted", out.Status)
	assert.Equal(t, 1, out.FilesQueued)
	assert.Len(t, out.JobIDs, 1)
}

func TestRoutes_SonarrWebhook_BadSignature(t *testing.T) {
	api, _ := newTestAPI(t, "s3cret")
	file := writeFile(t, t.TempDir(), "Show - S01E01.mkv")
	body := sonarrBody(t, map[string]any{"title": "Show"}, file)

	resp := api.Post("/webhook/sonarr",
		"X-Webhook-Signature: "+sign("wrong secret", body),
		bytes.NewReader(body))
	assert.Equal(t, 401, resp.Code)

	unsigned := api.Post("/webhook/sonarr", bytes.NewReader(body))
	assert.Equal(t, 401, unsigned.Code)
}

func TestRoutes_BatchValidation(t *testing.T) {
	api, _ := newTestAPI(t, "")

	// Schema-level enum rejection happens before the handler runs.
	resp := api.Post("/api/v1/batch", map[string]any{
		"path":     t.TempDir(),
		"priority": "urgent",
	})
	assert.Equal(t, 422, resp.Code)

	empty := api.Post("/api/v1/batch", map[string]any{"path": ""})
	assert.Equal(t, 422, empty.Code)
}

func TestRoutes_Batch(t *testing.T) {
	api, q := newTestAPI(t, "")
	dir := t.TempDir()
	writeFile(t, dir, "movie.mkv")

	resp := api.Post("/api/v1/batch", map[string]any{"path": dir})
	require.Equal(t, 200, resp.Code, resp.Body.String())

	var out BatchResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, "started", out.Status)
	assert.Equal(t, 1, out.TotalFiles)

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Queued)
}

func TestRoutes_JobNotFound(t *testing.T) {
	api, _ := newTestAPI(t, "")

	resp := api.Get("/api/v1/jobs/job_doesnotexist")
	assert.Equal(t, 404, resp.Code)
}

func TestRoutes_Health(t *testing.T) {
	api, _ := newTestAPI(t, "")

	resp := api.Get("/health")
	require.Equal(t, 200, resp.Code)

	var out HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, "1.2.3", out.Version)
	assert.Contains(t, []string{"healthy", "degraded", "unhealthy"}, out.Status)
}

func TestRoutes_ServiceInfo(t *testing.T) {
	api, _ := newTestAPI(t, "")

	resp := api.Get("/")
	require.Equal(t, 200, resp.Code)

	var out ServiceInfoResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, "audiarr", out.Name)
	assert.Equal(t, "/webhook/sonarr", out.Endpoints["sonarr_webhook"])
}
