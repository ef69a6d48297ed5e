package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/audiarr/internal/config"
	"github.com/jmylchreest/audiarr/internal/ffmpeg"
	"github.com/jmylchreest/audiarr/internal/queue"
)

// fakeTool writes a stub executable that answers -version.
func fakeTool(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\necho \"" + name + " version 1.0\"\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func allTools(t *testing.T) config.ToolsConfig {
	t.Helper()
	dir := t.TempDir()
	return config.ToolsConfig{
		FFprobePath:     fakeTool(t, dir, "ffprobe"),
		FFmpegPath:      fakeTool(t, dir, "ffmpeg"),
		MkvpropeditPath: fakeTool(t, dir, "mkvpropedit"),
	}
}

func TestHealthHandler_Healthy(t *testing.T) {
	q, db := newQueueManager(t)
	h := NewHealthHandler("1.2.3").
		WithDB(db).
		WithTools(ffmpeg.NewToolChecker(), allTools(t)).
		WithQueue(q)

	out, err := h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)

	assert.Equal(t, "healthy", out.Body.Status)
	assert.Equal(t, "1.2.3", out.Body.Version)
	for name, ok := range out.Body.Checks {
		assert.True(t, ok, "check %s", name)
	}
	assert.Zero(t, out.Body.QueueSize)
	assert.GreaterOrEqual(t, out.Body.UptimeSeconds, 0.0)
}

func TestHealthHandler_DegradedWhenToolMissing(t *testing.T) {
	q, db := newQueueManager(t)
	tools := allTools(t)
	tools.MkvpropeditPath = filepath.Join(t.TempDir(), "mkvpropedit")

	h := NewHealthHandler("dev").
		WithDB(db).
		WithTools(ffmpeg.NewToolChecker(), tools).
		WithQueue(q)

	out, err := h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)

	assert.Equal(t, "degraded", out.Body.Status)
	assert.False(t, out.Body.Checks["mkvpropedit"])
	assert.True(t, out.Body.Checks["ffprobe"])
	assert.True(t, out.Body.Checks["database"])
}

func TestHealthHandler_UnhealthyWithoutDatabase(t *testing.T) {
	h := NewHealthHandler("dev").WithTools(ffmpeg.NewToolChecker(), allTools(t))

	out, err := h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)

	assert.Equal(t, "unhealthy", out.Body.Status)
	assert.False(t, out.Body.Checks["database"])
}

func TestHealthHandler_ReportsQueueSize(t *testing.T) {
	q, db := newQueueManager(t)
	dir := t.TempDir()
	submitJob(t, q, queue.SubmitRequest{Path: writeFile(t, dir, "a.mkv")})
	submitJob(t, q, queue.SubmitRequest{Path: writeFile(t, dir, "b.mkv")})

	h := NewHealthHandler("dev").
		WithDB(db).
		WithTools(ffmpeg.NewToolChecker(), allTools(t)).
		WithQueue(q)

	out, err := h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)

	assert.Equal(t, int64(2), out.Body.QueueSize)
}

func TestHealthHandler_ServiceInfo(t *testing.T) {
	h := NewHealthHandler("1.2.3")

	out, err := h.GetServiceInfo(context.Background(), &ServiceInfoInput{})
	require.NoError(t, err)

	assert.Equal(t, "audiarr", out.Body.Name)
	assert.Equal(t, "1.2.3", out.Body.Version)
	assert.Equal(t, "/webhook/sonarr", out.Body.Endpoints["sonarr_webhook"])
	assert.Equal(t, "/webhook/radarr", out.Body.Endpoints["radarr_webhook"])
	assert.Equal(t, "/health", out.Body.Endpoints["health"])
}
