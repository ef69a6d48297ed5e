// Package repository defines data access interfaces for audiarr entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/jmylchreest/audiarr/internal/models"
)

// JobRepository defines operations for job persistence. Status transitions
// write a JobEvent row in the same transaction as the job update so the
// audit trail can never diverge from the jobs table.
type JobRepository interface {
	// Insert creates a new job and its creation event. Returns
	// models.ErrAlreadyExists on a job_id collision.
	Insert(ctx context.Context, job *models.Job) error
	// Get retrieves a job by its external job_id. Returns
	// models.ErrNotFound if no such job exists.
	Get(ctx context.Context, jobID string) (*models.Job, error)
	// Update persists all fields of an existing job.
	Update(ctx context.Context, job *models.Job) error
	// UpdateWithEvent persists the job and appends a transition event
	// (from -> job.Status) in a single transaction.
	UpdateWithEvent(ctx context.Context, job *models.Job, from models.JobStatus, note string) error
	// ClaimNext atomically claims the next queued job: highest priority
	// first, oldest first within a priority. The claimed job is moved to
	// running with started_at stamped. When maxMP4Running > 0 and the
	// number of running mp4 jobs (counted in the same transaction) has
	// reached it, mp4 jobs are excluded from consideration. Returns
	// (nil, nil) when nothing is claimable.
	ClaimNext(ctx context.Context, maxMP4Running int) (*models.Job, error)
	// ListByStatus retrieves jobs in the given status, oldest first.
	ListByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error)
	// ListByWebhook retrieves all jobs created by one webhook delivery,
	// oldest first.
	ListByWebhook(ctx context.Context, webhookID string) ([]*models.Job, error)
	// ListByBatch retrieves all jobs created by one batch submission,
	// oldest first.
	ListByBatch(ctx context.Context, batchID string) ([]*models.Job, error)
	// ListEvents retrieves the transition history of a job, oldest first.
	ListEvents(ctx context.Context, jobID string) ([]*models.JobEvent, error)
	// CountByStatus returns the number of jobs in the given status.
	CountByStatus(ctx context.Context, status models.JobStatus) (int64, error)
	// CountRunningForContainer returns the number of running jobs for a
	// container type.
	CountRunningForContainer(ctx context.Context, container models.Container) (int64, error)
	// AggregateCounts returns job counts grouped by status in one query.
	AggregateCounts(ctx context.Context) (*models.QueueStats, error)
	// Delete removes a job by job_id.
	Delete(ctx context.Context, jobID string) error
	// PruneTerminalBefore deletes terminal jobs (and their events) whose
	// completed_at is before the cutoff. Returns the number of jobs
	// removed.
	PruneTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// FailOrphanedRunning fails every running job with the given error
	// message. Called once at startup; running jobs found then were
	// abandoned by a previous process. Returns the number of jobs failed.
	FailOrphanedRunning(ctx context.Context, msg string) (int64, error)
}

// MetadataCacheRepository defines operations for the TMDB response cache.
type MetadataCacheRepository interface {
	// Get retrieves a cache entry by key. Expired entries are treated as
	// missing. Returns models.ErrNotFound when absent or expired.
	Get(ctx context.Context, key string) (*models.CacheEntry, error)
	// Set stores a value under key with the given TTL, replacing any
	// existing entry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// DeleteExpired removes entries whose TTL has passed. Returns the
	// number of entries removed.
	DeleteExpired(ctx context.Context) (int64, error)
}
