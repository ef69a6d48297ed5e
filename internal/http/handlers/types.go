// Package handlers provides HTTP API handlers for audiarr.
package handlers

import (
	"time"

	"github.com/jmylchreest/audiarr/internal/models"
)

// JobResponse represents a job in API responses.
type JobResponse struct {
	JobID                 string     `json:"job_id"`
	FilePath              string     `json:"file_path"`
	Status                string     `json:"status"`
	Priority              string     `json:"priority"`
	Source                string     `json:"source"`
	Container             string     `json:"container"`
	CreatedAt             time.Time  `json:"created_at"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	Success               *bool      `json:"success,omitempty"`
	ErrorMessage          string     `json:"error_message,omitempty"`
	SelectedTrackIndex    *int       `json:"selected_track_index,omitempty"`
	SelectedTrackLanguage *string    `json:"selected_track_language,omitempty"`
	WebhookID             string     `json:"webhook_id,omitempty"`
	BatchID               string     `json:"batch_id,omitempty"`
}

// JobFromModel converts a job model to a response.
func JobFromModel(j *models.Job) JobResponse {
	return JobResponse{
		JobID:                 j.JobID,
		FilePath:              j.FilePath,
		Status:                string(j.Status),
		Priority:              string(j.Priority),
		Source:                string(j.Source),
		Container:             string(j.Container),
		CreatedAt:             j.CreatedAt,
		StartedAt:             j.StartedAt,
		CompletedAt:           j.CompletedAt,
		Success:               j.Success,
		ErrorMessage:          j.ErrorMessage,
		SelectedTrackIndex:    j.SelectedTrackIndex,
		SelectedTrackLanguage: j.SelectedTrackLanguage,
		WebhookID:             j.WebhookID,
		BatchID:               j.BatchID,
	}
}

// JobsFromModels converts a job list to responses.
func JobsFromModels(jobs []*models.Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobFromModel(j))
	}
	return out
}

// JobEventResponse represents one entry of a job's audit trail.
type JobEventResponse struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// JobEventFromModel converts a job event model to a response.
func JobEventFromModel(e *models.JobEvent) JobEventResponse {
	return JobEventResponse{
		ID:         e.ID.String(),
		JobID:      e.JobID,
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		Note:       e.Note,
		CreatedAt:  e.CreatedAt,
	}
}

// WebhookResponse is returned by the Sonarr/Radarr webhook endpoints. One
// webhook delivery may queue several files; WebhookID links them.
type WebhookResponse struct {
	Status      string   `json:"status" enum:"accepted,rejected" doc:"Whether any file was queued"`
	WebhookID   string   `json:"webhook_id,omitempty" doc:"Groups all jobs from this delivery"`
	JobIDs      []string `json:"job_ids,omitempty"`
	FilesQueued int      `json:"files_queued"`
	Message     string   `json:"message,omitempty"`
}

// BatchResponse is returned by the batch submission endpoint.
type BatchResponse struct {
	Status     string   `json:"status" enum:"started,rejected"`
	BatchID    string   `json:"batch_id,omitempty"`
	TotalFiles int      `json:"total_files"`
	JobIDs     []string `json:"job_ids,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// QueueResponse reports job counts by status plus worker occupancy.
type QueueResponse struct {
	TotalJobs     int64 `json:"total_jobs"`
	Queued        int64 `json:"queued"`
	Running       int64 `json:"running"`
	Completed     int64 `json:"completed"`
	Failed        int64 `json:"failed"`
	Cancelled     int64 `json:"cancelled"`
	WorkersActive int   `json:"workers_active"`
	WorkersTotal  int   `json:"workers_total"`
}

// GroupJobsResponse is the aggregate view over all jobs sharing a webhook or
// batch id. AllCompleted is true once every job is terminal; AnyFailed when
// at least one failed. Callers drive retries from these two flags.
type GroupJobsResponse struct {
	GroupID      string        `json:"group_id"`
	Source       string        `json:"source"`
	TotalJobs    int           `json:"total_jobs"`
	Jobs         []JobResponse `json:"jobs"`
	AllCompleted bool          `json:"all_completed"`
	AnyFailed    bool          `json:"any_failed"`
}

// WorkerStats reports worker pool occupancy.
type WorkerStats struct {
	TotalWorkers  int  `json:"total_workers"`
	ActiveWorkers int  `json:"active_workers"`
	IdleWorkers   int  `json:"idle_workers"`
	PoolRunning   bool `json:"pool_running"`
}

// StatsResponse aggregates queue and worker statistics.
type StatsResponse struct {
	QueueStats    QueueResponse `json:"queue_stats"`
	WorkerStats   WorkerStats   `json:"worker_stats"`
	UptimeSeconds float64       `json:"uptime_seconds"`
}

// HealthResponse reports service health. Status is healthy when every check
// passes, degraded when an external tool is missing, and unhealthy when the
// database is unreachable.
type HealthResponse struct {
	Status        string          `json:"status" enum:"healthy,degraded,unhealthy"`
	Version       string          `json:"version"`
	QueueSize     int64           `json:"queue_size"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	Checks        map[string]bool `json:"checks"`
}

// ServiceInfoResponse describes the service and its endpoint map.
type ServiceInfoResponse struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Endpoints   map[string]string `json:"endpoints"`
}
