package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/audiarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// priorityOrder ranks queued jobs for dispatch: high before normal before
// low, oldest first within a class.
const priorityOrder = "CASE priority WHEN 'high' THEN 1 WHEN 'normal' THEN 2 WHEN 'low' THEN 3 ELSE 4 END, created_at ASC"

// jobRepo implements JobRepository using GORM.
type jobRepo struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *jobRepo {
	return &jobRepo{db: db}
}

// Insert creates a new job together with its creation event.
func (r *jobRepo) Insert(ctx context.Context, job *models.Job) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		return tx.Create(&models.JobEvent{
			JobID:    job.JobID,
			ToStatus: job.Status,
		}).Error
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return models.ErrAlreadyExists
		}
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

// Get retrieves a job by job_id.
func (r *jobRepo) Get(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return &job, nil
}

// Update updates an existing job.
func (r *jobRepo) Update(ctx context.Context, job *models.Job) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("updating job: %w", err)
	}
	return nil
}

// UpdateWithEvent persists the job and its transition event atomically.
func (r *jobRepo) UpdateWithEvent(ctx context.Context, job *models.Job, from models.JobStatus, note string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(job).Error; err != nil {
			return err
		}
		return tx.Create(&models.JobEvent{
			JobID:      job.JobID,
			FromStatus: from,
			ToStatus:   job.Status,
			Note:       note,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("updating job with event: %w", err)
	}
	return nil
}

// ClaimNext atomically claims the next queued job for execution.
// Uses SELECT FOR UPDATE with SKIP LOCKED for safe concurrent access.
func (r *jobRepo) ClaimNext(ctx context.Context, maxMP4Running int) (*models.Job, error) {
	var job models.Job

	// Use a transaction for atomic claim
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", models.JobStatusQueued).
			Order(priorityOrder).
			Limit(1)

		if maxMP4Running > 0 {
			var running int64
			if err := tx.Model(&models.Job{}).
				Where("status = ? AND container = ?", models.JobStatusRunning, models.ContainerMP4).
				Count(&running).Error; err != nil {
				return fmt.Errorf("counting running mp4 jobs: %w", err)
			}
			if running >= int64(maxMP4Running) {
				query = query.Where("container <> ?", models.ContainerMP4)
			}
		}

		if err := query.First(&job).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return err // Will cause nil return
			}
			return fmt.Errorf("finding queued job: %w", err)
		}

		job.MarkRunning()

		// SKIP LOCKED is a no-op on SQLite, so guard the claim with a
		// compare-and-swap on the queued status. Losing the race looks
		// the same as an empty queue.
		res := tx.Model(&models.Job{}).
			Where("job_id = ? AND status = ?", job.JobID, models.JobStatusQueued).
			UpdateColumns(map[string]interface{}{
				"status":     models.JobStatusRunning,
				"started_at": job.StartedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("claiming job: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Create(&models.JobEvent{
			JobID:      job.JobID,
			FromStatus: models.JobStatusQueued,
			ToStatus:   models.JobStatusRunning,
		}).Error
	})

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil // No claimable jobs
		}
		return nil, err
	}

	return &job, nil
}

// ListByStatus retrieves jobs by status, oldest first.
func (r *jobRepo) ListByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	var jobs []*models.Job
	if err := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at ASC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("getting jobs by status: %w", err)
	}
	return jobs, nil
}

// ListByWebhook retrieves all jobs for a webhook delivery, oldest first.
func (r *jobRepo) ListByWebhook(ctx context.Context, webhookID string) ([]*models.Job, error) {
	var jobs []*models.Job
	if err := r.db.WithContext(ctx).Where("webhook_id = ?", webhookID).Order("created_at ASC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("getting jobs by webhook: %w", err)
	}
	return jobs, nil
}

// ListByBatch retrieves all jobs for a batch submission, oldest first.
func (r *jobRepo) ListByBatch(ctx context.Context, batchID string) ([]*models.Job, error) {
	var jobs []*models.Job
	if err := r.db.WithContext(ctx).Where("batch_id = ?", batchID).Order("created_at ASC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("getting jobs by batch: %w", err)
	}
	return jobs, nil
}

// ListEvents retrieves a job's transition history, oldest first.
func (r *jobRepo) ListEvents(ctx context.Context, jobID string) ([]*models.JobEvent, error) {
	var events []*models.JobEvent
	if err := r.db.WithContext(ctx).Where("job_id = ?", jobID).Order("created_at ASC, id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("getting job events: %w", err)
	}
	return events, nil
}

// CountByStatus returns the number of jobs in a status.
func (r *jobRepo) CountByStatus(ctx context.Context, status models.JobStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Job{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting jobs by status: %w", err)
	}
	return count, nil
}

// CountRunningForContainer returns the number of running jobs per container.
func (r *jobRepo) CountRunningForContainer(ctx context.Context, container models.Container) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("status = ? AND container = ?", models.JobStatusRunning, container).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting running jobs by container: %w", err)
	}
	return count, nil
}

// AggregateCounts returns job counts grouped by status in a single query.
func (r *jobRepo) AggregateCounts(ctx context.Context) (*models.QueueStats, error) {
	var rows []struct {
		Status models.JobStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("aggregating job counts: %w", err)
	}

	stats := &models.QueueStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case models.JobStatusQueued:
			stats.Queued = row.Count
		case models.JobStatusRunning:
			stats.Running = row.Count
		case models.JobStatusCompleted:
			stats.Completed = row.Count
		case models.JobStatusFailed:
			stats.Failed = row.Count
		case models.JobStatusCancelled:
			stats.Cancelled = row.Count
		}
	}
	return stats, nil
}

// Delete deletes a job and its events by job_id.
func (r *jobRepo) Delete(ctx context.Context, jobID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.JobEvent{}).Error; err != nil {
			return err
		}
		return tx.Where("job_id = ?", jobID).Delete(&models.Job{}).Error
	})
	if err != nil {
		return fmt.Errorf("deleting job: %w", err)
	}
	return nil
}

// PruneTerminalBefore deletes terminal jobs completed before the cutoff.
func (r *jobRepo) PruneTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.Job{}).
			Where("status IN (?, ?, ?) AND completed_at < ?",
				models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled, cutoff).
			Pluck("job_id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("job_id IN ?", ids).Delete(&models.JobEvent{}).Error; err != nil {
			return err
		}
		res := tx.Where("job_id IN ?", ids).Delete(&models.Job{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("pruning terminal jobs: %w", err)
	}
	return deleted, nil
}

// FailOrphanedRunning fails every running job, recovering after a crash or
// unclean shutdown left them stranded.
func (r *jobRepo) FailOrphanedRunning(ctx context.Context, msg string) (int64, error) {
	var failed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var jobs []*models.Job
		if err := tx.Where("status = ?", models.JobStatusRunning).Find(&jobs).Error; err != nil {
			return err
		}
		for _, job := range jobs {
			job.MarkFailed(msg)
			if err := tx.Save(job).Error; err != nil {
				return err
			}
			if err := tx.Create(&models.JobEvent{
				JobID:      job.JobID,
				FromStatus: models.JobStatusRunning,
				ToStatus:   models.JobStatusFailed,
				Note:       msg,
			}).Error; err != nil {
				return err
			}
		}
		failed = int64(len(jobs))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failing orphaned jobs: %w", err)
	}
	return failed, nil
}

// isDuplicateKeyError reports whether err is a unique constraint violation.
// Matched by message because the sqlite, postgres, and mysql drivers each
// surface it differently.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "Duplicate entry")
}

// Ensure jobRepo implements JobRepository at compile time.
var _ JobRepository = (*jobRepo)(nil)
