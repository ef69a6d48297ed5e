package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"gorm.io/gorm"

	"github.com/jmylchreest/audiarr/internal/config"
	"github.com/jmylchreest/audiarr/internal/ffmpeg"
	"github.com/jmylchreest/audiarr/internal/queue"
)

// HealthHandler handles the health check and service info endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        *gorm.DB
	checker   *ffmpeg.ToolChecker
	tools     config.ToolsConfig
	queue     *queue.Manager
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB sets the database connection for health checks.
func (h *HealthHandler) WithDB(db *gorm.DB) *HealthHandler {
	h.db = db
	return h
}

// WithTools sets the checker and tool paths probed by the health check.
func (h *HealthHandler) WithTools(checker *ffmpeg.ToolChecker, tools config.ToolsConfig) *HealthHandler {
	h.checker = checker
	h.tools = tools
	return h
}

// WithQueue sets the queue manager used to report queue depth.
func (h *HealthHandler) WithQueue(q *queue.Manager) *HealthHandler {
	h.queue = q
	return h
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health derived from external tool availability and database connectivity",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getServiceInfo",
		Method:      "GET",
		Path:        "/",
		Summary:     "Service info",
		Description: "Returns the service name, version, and endpoint map",
		Tags:        []string{"System"},
	}, h.GetServiceInfo)
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// GetHealth returns the health status of the service.
//
// The status is healthy when every check passes, unhealthy when the
// database is unreachable, and degraded when the database is fine but
// one of the external tools is missing.
func (h *HealthHandler) GetHealth(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	checks := map[string]bool{
		"ffprobe":     h.toolAvailable(ctx, "ffprobe", h.tools.FFprobe()),
		"ffmpeg":      h.toolAvailable(ctx, "ffmpeg", h.tools.FFmpeg()),
		"mkvpropedit": h.toolAvailable(ctx, "mkvpropedit", h.tools.Mkvpropedit()),
		"database":    h.databaseAlive(ctx),
	}

	status := "healthy"
	for _, ok := range checks {
		if !ok {
			status = "degraded"
			break
		}
	}
	if !checks["database"] {
		status = "unhealthy"
	}

	var queueSize int64
	if h.queue != nil {
		if stats, err := h.queue.Stats(ctx); err == nil {
			queueSize = stats.Queued
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:        status,
			Version:       h.version,
			QueueSize:     queueSize,
			UptimeSeconds: time.Since(h.startTime).Seconds(),
			Checks:        checks,
		},
	}, nil
}

func (h *HealthHandler) toolAvailable(ctx context.Context, name, path string) bool {
	if h.checker == nil {
		return false
	}
	return h.checker.Check(ctx, name, path).Available
}

func (h *HealthHandler) databaseAlive(ctx context.Context) bool {
	if h.db == nil {
		return false
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

// ServiceInfoInput is the input for the service info endpoint.
type ServiceInfoInput struct{}

// ServiceInfoOutput is the output for the service info endpoint.
type ServiceInfoOutput struct {
	Body ServiceInfoResponse
}

// GetServiceInfo returns the service name, version, and endpoint map.
func (h *HealthHandler) GetServiceInfo(ctx context.Context, input *ServiceInfoInput) (*ServiceInfoOutput, error) {
	return &ServiceInfoOutput{
		Body: ServiceInfoResponse{
			Name:        "audiarr",
			Version:     h.version,
			Description: "Default audio track management for Sonarr/Radarr libraries",
			Endpoints: map[string]string{
				"health":         "/health",
				"sonarr_webhook": "/webhook/sonarr",
				"radarr_webhook": "/webhook/radarr",
				"queue":          "/api/v1/queue",
				"batch":          "/api/v1/batch",
				"stats":          "/api/v1/stats",
				"docs":           "/docs",
			},
		},
	}, nil
}
