// Package queue coordinates job admission, claiming, and state transitions.
// The Manager is a thin, concurrency-safe facade over the job repository;
// all multi-step writes are delegated to the repository so they stay
// transactional.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmylchreest/audiarr/internal/config"
	"github.com/jmylchreest/audiarr/internal/models"
	"github.com/jmylchreest/audiarr/internal/repository"
	"github.com/jmylchreest/audiarr/internal/scanner"
)

// Prober reports the container class of a file. Admission only needs the
// container; track analysis happens later in the pipeline.
type Prober interface {
	Probe(ctx context.Context, path string) (*models.ProbeResult, error)
}

// Manager owns job admission and the job state machine.
type Manager struct {
	jobs   repository.JobRepository
	prober Prober
	cfg    *config.Config
	logger *slog.Logger
}

// NewManager creates a queue manager.
func NewManager(jobs repository.JobRepository, prober Prober, cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		jobs:   jobs,
		prober: prober,
		cfg:    cfg,
		logger: logger,
	}
}

// SubmitRequest carries one file submission. Priority and Source default to
// normal/manual; the remaining fields are optional metadata hints consumed
// by the selector.
type SubmitRequest struct {
	Path             string
	Priority         models.JobPriority
	Source           models.JobSource
	WebhookID        string
	BatchID          string
	TMDBID           *int
	OriginalLanguage string
	SeriesTitle      string
	MovieTitle       string
}

// Submit admits one file into the queue. The file is probed for its
// container only; unsupported or disabled containers are rejected with
// models.ErrUnsupportedContainer / models.ErrContainerDisabled, a full
// backlog with models.ErrQueueFull. The stored path is absolute with
// symlinks resolved.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*models.Job, error) {
	priority := req.Priority
	if priority == "" {
		priority = models.JobPriorityNormal
	}
	if !priority.IsValid() {
		return nil, models.ErrInvalidPriority
	}
	source := req.Source
	if source == "" {
		source = models.JobSourceManual
	}
	if !source.IsValid() {
		return nil, models.ErrInvalidSource
	}

	path, err := resolvePath(req.Path)
	if err != nil {
		return nil, err
	}

	if m.cfg.Processing.MaxQueueSize > 0 {
		queued, err := m.jobs.CountByStatus(ctx, models.JobStatusQueued)
		if err != nil {
			return nil, fmt.Errorf("checking queue size: %w", err)
		}
		if queued >= int64(m.cfg.Processing.MaxQueueSize) {
			return nil, models.ErrQueueFull
		}
	}

	probe, err := m.prober.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", path, err)
	}
	if probe.Unsupported {
		return nil, models.ErrUnsupportedContainer{Path: path, Format: probe.FormatName}
	}
	if !m.cfg.Containers.Enabled(string(probe.Container)) {
		return nil, models.ErrContainerDisabled{Container: probe.Container, Path: path}
	}

	job := &models.Job{
		FilePath:         path,
		Container:        probe.Container,
		Status:           models.JobStatusQueued,
		Priority:         priority,
		Source:           source,
		WebhookID:        req.WebhookID,
		BatchID:          req.BatchID,
		TMDBID:           req.TMDBID,
		OriginalLanguage: req.OriginalLanguage,
		SeriesTitle:      req.SeriesTitle,
		MovieTitle:       req.MovieTitle,
	}
	if err := m.jobs.Insert(ctx, job); err != nil {
		return nil, err
	}

	m.logger.Info("job submitted",
		"job_id", job.JobID,
		"file", path,
		"container", job.Container,
		"priority", priority,
		"source", source)
	return job, nil
}

// BatchRequest describes a directory submission.
type BatchRequest struct {
	Path      string
	Pattern   string
	Recursive bool
	Priority  models.JobPriority
	DryRun    bool
}

// SubmitBatch scans a directory and submits every matching file under a
// fresh batch id. A failure on one candidate never prevents the others from
// being submitted. In dry-run mode candidates are probed and logged but
// nothing is inserted; the returned job list is empty.
func (m *Manager) SubmitBatch(ctx context.Context, req BatchRequest) (string, []*models.Job, error) {
	batchID := models.NewBatchID()

	files, err := scanner.Scan(req.Path, req.Pattern, req.Recursive)
	if err != nil {
		return batchID, nil, err
	}

	m.logger.Info("batch scan complete",
		"batch_id", batchID,
		"path", req.Path,
		"recursive", req.Recursive,
		"candidates", len(files))

	var jobs []*models.Job
	for _, file := range files {
		if req.DryRun {
			probe, err := m.prober.Probe(ctx, file)
			if err != nil {
				m.logger.Warn("dry run: probe failed", "file", file, "error", err)
				continue
			}
			m.logger.Info("dry run: would submit",
				"batch_id", batchID, "file", file, "container", probe.Container)
			continue
		}

		job, err := m.Submit(ctx, SubmitRequest{
			Path:     file,
			Priority: req.Priority,
			Source:   models.JobSourceManual,
			BatchID:  batchID,
		})
		if err != nil {
			m.logger.Warn("batch candidate rejected",
				"batch_id", batchID, "file", file, "error", err)
			continue
		}
		jobs = append(jobs, job)
	}

	m.logger.Info("batch submission complete",
		"batch_id", batchID, "candidates", len(files), "jobs_created", len(jobs))
	return batchID, jobs, nil
}

// Next claims the next runnable job, or (nil, nil) when the queue is empty.
// The MP4 concurrency cap is enforced inside the claim so no more than
// max_mp4_concurrent MP4 jobs run at once.
func (m *Manager) Next(ctx context.Context) (*models.Job, error) {
	return m.jobs.ClaimNext(ctx, m.cfg.Processing.MaxMP4Concurrent)
}

// TransitionUpdate carries the optional fields written together with a
// status change.
type TransitionUpdate struct {
	ErrorMessage          string
	SelectedTrackIndex    *int
	SelectedTrackLanguage *string
	// Note is recorded on the transition event, not the job.
	Note string
}

// Transition moves a job to a new status after validating the change against
// the state machine (queued->running, running->completed, running->failed,
// queued->cancelled). Illegal transitions return models.ErrIllegalTransition
// and leave the record untouched. Timestamps and terminal fields are stamped
// here; callers never write them directly.
func (m *Manager) Transition(ctx context.Context, jobID string, to models.JobStatus, upd TransitionUpdate) (*models.Job, error) {
	job, err := m.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	from := job.Status
	if !from.CanTransition(to) {
		return nil, models.ErrIllegalTransition{JobID: jobID, From: from, To: to}
	}

	switch to {
	case models.JobStatusRunning:
		job.MarkRunning()
	case models.JobStatusCompleted:
		job.MarkCompleted(upd.SelectedTrackIndex, upd.SelectedTrackLanguage)
	case models.JobStatusFailed:
		job.MarkFailed(upd.ErrorMessage)
	case models.JobStatusCancelled:
		job.MarkCancelled()
	}

	if err := m.jobs.UpdateWithEvent(ctx, job, from, upd.Note); err != nil {
		return nil, err
	}

	m.logger.Debug("job transitioned",
		"job_id", jobID, "from", from, "to", to)
	return job, nil
}

// Cancel cancels a queued job. Jobs that already started or finished return
// models.ErrNotCancellable.
func (m *Manager) Cancel(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := m.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusQueued {
		return nil, models.ErrNotCancellable
	}
	return m.Transition(ctx, jobID, models.JobStatusCancelled, TransitionUpdate{Note: "cancelled by request"})
}

// Get retrieves a job by id.
func (m *Manager) Get(ctx context.Context, jobID string) (*models.Job, error) {
	return m.jobs.Get(ctx, jobID)
}

// ListByWebhook retrieves all jobs created by one webhook delivery.
func (m *Manager) ListByWebhook(ctx context.Context, webhookID string) ([]*models.Job, error) {
	return m.jobs.ListByWebhook(ctx, webhookID)
}

// ListByBatch retrieves all jobs created by one batch submission.
func (m *Manager) ListByBatch(ctx context.Context, batchID string) ([]*models.Job, error) {
	return m.jobs.ListByBatch(ctx, batchID)
}

// ListEvents retrieves a job's transition history, oldest first.
func (m *Manager) ListEvents(ctx context.Context, jobID string) ([]*models.JobEvent, error) {
	if _, err := m.jobs.Get(ctx, jobID); err != nil {
		return nil, err
	}
	return m.jobs.ListEvents(ctx, jobID)
}

// Stats returns job counts by status.
func (m *Manager) Stats(ctx context.Context) (*models.QueueStats, error) {
	return m.jobs.AggregateCounts(ctx)
}

// RunningMP4Count returns the number of MP4 jobs currently running.
func (m *Manager) RunningMP4Count(ctx context.Context) (int64, error) {
	return m.jobs.CountRunningForContainer(ctx, models.ContainerMP4)
}

// PruneOlderThan removes terminal jobs whose completion is older than the
// retention window. Queued and running jobs are never touched.
func (m *Manager) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := models.Now().Add(-retention)
	return m.jobs.PruneTerminalBefore(ctx, cutoff)
}

// FailOrphanedRunning fails every job still marked running. Called once at
// startup, before any worker claims: a job running then has no live worker
// and was abandoned by a previous process.
func (m *Manager) FailOrphanedRunning(ctx context.Context) (int64, error) {
	return m.jobs.FailOrphanedRunning(ctx, "orphaned by restart")
}

// resolvePath normalizes a submitted path to an absolute, symlink-resolved
// path and verifies it names a regular file.
func resolvePath(raw string) (string, error) {
	if raw == "" {
		return "", models.ErrFilePathRequired
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", raw, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", raw, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", raw, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("resolving %s: not a regular file", raw)
	}
	return resolved, nil
}
