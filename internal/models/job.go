package models

import (
	"encoding/hex"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	// JobStatusQueued indicates the job is waiting to be claimed.
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning indicates a worker is executing the job.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the pipeline finished the job.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the pipeline or daemon failed the job.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled before running.
	JobStatusCancelled JobStatus = "cancelled"
)

// ValidStatuses lists every job status.
var ValidStatuses = []JobStatus{
	JobStatusQueued,
	JobStatusRunning,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusCancelled,
}

// IsTerminal returns true for states a job never leaves.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// IsValid returns true if s is a known status.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits s -> to.
// Permitted: queued->running, running->completed, running->failed,
// queued->cancelled. Everything else is a programming error.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return to == JobStatusRunning || to == JobStatusCancelled
	case JobStatusRunning:
		return to == JobStatusCompleted || to == JobStatusFailed
	}
	return false
}

// JobPriority determines dequeue order: high before normal before low.
type JobPriority string

const (
	// JobPriorityHigh is used for webhook-driven jobs.
	JobPriorityHigh JobPriority = "high"
	// JobPriorityNormal is the default for manual submissions.
	JobPriorityNormal JobPriority = "normal"
	// JobPriorityLow is used for bulk background work.
	JobPriorityLow JobPriority = "low"
)

// IsValid returns true if p is a known priority.
func (p JobPriority) IsValid() bool {
	switch p {
	case JobPriorityHigh, JobPriorityNormal, JobPriorityLow:
		return true
	}
	return false
}

// Rank returns the dequeue rank of the priority; lower runs first.
func (p JobPriority) Rank() int {
	switch p {
	case JobPriorityHigh:
		return 1
	case JobPriorityNormal:
		return 2
	case JobPriorityLow:
		return 3
	}
	return 4
}

// JobSource records where a job originated. Informational only; it never
// affects scheduling.
type JobSource string

const (
	// JobSourceSonarr marks jobs created by Sonarr webhooks.
	JobSourceSonarr JobSource = "sonarr"
	// JobSourceRadarr marks jobs created by Radarr webhooks.
	JobSourceRadarr JobSource = "radarr"
	// JobSourceManual marks jobs created by the API or CLI.
	JobSourceManual JobSource = "manual"
	// JobSourceRetry marks caller-driven resubmissions.
	JobSourceRetry JobSource = "retry"
)

// IsValid returns true if s is a known source.
func (s JobSource) IsValid() bool {
	switch s {
	case JobSourceSonarr, JobSourceRadarr, JobSourceManual, JobSourceRetry:
		return true
	}
	return false
}

// Container identifies the video container format of a job's file.
type Container string

const (
	// ContainerMKV is a Matroska container, mutated in place by mkvpropedit.
	ContainerMKV Container = "mkv"
	// ContainerMP4 is an ISO BMFF container, mutated via a full remux.
	ContainerMP4 Container = "mp4"
)

// IsValid returns true if c is a processable container.
func (c Container) IsValid() bool {
	return c == ContainerMKV || c == ContainerMP4
}

// NewJobID returns a fresh job identifier ("job_" + 12 hex chars).
func NewJobID() string {
	return "job_" + randomHex(12)
}

// NewBatchID returns a fresh batch identifier ("batch_" + 12 hex chars).
func NewBatchID() string {
	return "batch_" + randomHex(12)
}

// NewWebhookID returns a fresh webhook identifier ("wh_" + 12 hex chars).
func NewWebhookID() string {
	return "wh_" + randomHex(12)
}

func randomHex(n int) string {
	u := uuid.New()
	return hex.EncodeToString(u[:])[:n]
}

// Job is a single-file processing request, the fundamental unit of work.
// Once a job enters a terminal state no field mutates again.
type Job struct {
	// JobID is the stable external identifier, assigned at creation.
	JobID string `gorm:"primarykey;size:20" json:"job_id"`

	// FilePath is the absolute, symlink-resolved path captured at enqueue.
	FilePath string `gorm:"not null;size:4096" json:"file_path"`

	// Container is determined by the prober at enqueue.
	Container Container `gorm:"not null;size:10" json:"container"`

	// Status is the lifecycle state; transitions are checked by the queue
	// manager.
	Status JobStatus `gorm:"not null;default:'queued';size:20;index:idx_jobs_status" json:"status"`

	// Priority orders dequeueing within the backlog.
	Priority JobPriority `gorm:"not null;default:'normal';size:10;index:idx_jobs_priority,priority:1" json:"priority"`

	// Source records the submitter.
	Source JobSource `gorm:"not null;size:10" json:"source"`

	// WebhookID groups all jobs spawned by one webhook delivery.
	WebhookID string `gorm:"size:20;index:idx_jobs_webhook_id" json:"webhook_id,omitempty"`

	// BatchID groups all jobs spawned by one batch scan.
	BatchID string `gorm:"size:20;index:idx_jobs_batch_id" json:"batch_id,omitempty"`

	// SelectedTrackIndex and SelectedTrackLanguage are written once by the
	// worker when the selector picks a track.
	SelectedTrackIndex    *int    `json:"selected_track_index,omitempty"`
	SelectedTrackLanguage *string `gorm:"size:10" json:"selected_track_language,omitempty"`

	// CreatedAt orders jobs within a priority class.
	CreatedAt Time `gorm:"index:idx_jobs_created_at;index:idx_jobs_priority,priority:2" json:"created_at"`

	// StartedAt is set on the queued->running transition.
	StartedAt *Time `json:"started_at,omitempty"`

	// CompletedAt is set on any transition into a terminal state.
	CompletedAt *Time `json:"completed_at,omitempty"`

	// Success is set with the terminal transition: true iff completed.
	Success *bool `json:"success,omitempty"`

	// ErrorMessage describes which stage failed and why.
	ErrorMessage string `gorm:"size:4096" json:"error_message,omitempty"`

	// RetryCount is managed by callers resubmitting with source=retry.
	RetryCount int `gorm:"default:0" json:"retry_count"`

	// Metadata hints set at enqueue; the selector consumes
	// OriginalLanguage, the rest are informational.
	TMDBID           *int   `gorm:"column:tmdb_id" json:"tmdb_id,omitempty"`
	OriginalLanguage string `gorm:"size:10" json:"original_language,omitempty"`
	SeriesTitle      string `gorm:"size:255" json:"series_title,omitempty"`
	MovieTitle       string `gorm:"size:255" json:"movie_title,omitempty"`
}

// TableName returns the table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// IsTerminal returns true once the job reached a final state.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// MarkRunning transitions queued->running, stamping started_at.
func (j *Job) MarkRunning() {
	j.Status = JobStatusRunning
	now := Now()
	j.StartedAt = &now
}

// MarkCompleted transitions running->completed. All terminal fields are
// written together. Track fields are recorded when the pipeline selected a
// track; skips without a selection pass nils and leave them unset.
func (j *Job) MarkCompleted(trackIndex *int, trackLanguage *string) {
	j.Status = JobStatusCompleted
	now := Now()
	j.CompletedAt = &now
	ok := true
	j.Success = &ok
	j.SelectedTrackIndex = trackIndex
	j.SelectedTrackLanguage = trackLanguage
	j.ErrorMessage = ""
}

// MarkFailed transitions running->failed with an error message.
func (j *Job) MarkFailed(msg string) {
	j.Status = JobStatusFailed
	now := Now()
	j.CompletedAt = &now
	ok := false
	j.Success = &ok
	j.ErrorMessage = msg
}

// MarkCancelled transitions queued->cancelled.
func (j *Job) MarkCancelled() {
	j.Status = JobStatusCancelled
	now := Now()
	j.CompletedAt = &now
	ok := false
	j.Success = &ok
}

// Validate performs basic validation on the job.
func (j *Job) Validate() error {
	if j.FilePath == "" {
		return ErrFilePathRequired
	}
	if !j.Priority.IsValid() {
		return ErrInvalidPriority
	}
	if !j.Source.IsValid() {
		return ErrInvalidSource
	}
	if !j.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// BeforeCreate is a GORM hook that assigns a job_id and validates.
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.JobID == "" {
		j.JobID = NewJobID()
	}
	if j.Status == "" {
		j.Status = JobStatusQueued
	}
	if j.Priority == "" {
		j.Priority = JobPriorityNormal
	}
	return j.Validate()
}

// BeforeUpdate is a GORM hook that validates the job before update.
func (j *Job) BeforeUpdate(tx *gorm.DB) error {
	return j.Validate()
}
