// Package worker runs the pool of goroutines that drain the job queue. Each
// worker claims one job at a time, executes the pipeline synchronously, and
// records the terminal result through the queue manager. A maintenance
// goroutine prunes old terminal jobs and expired metadata cache rows on a
// cron schedule.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/audiarr/internal/config"
	"github.com/jmylchreest/audiarr/internal/models"
	"github.com/jmylchreest/audiarr/internal/queue"
	"github.com/jmylchreest/audiarr/internal/repository"
)

// Pipeline processes one file end to end and returns a terminal result.
type Pipeline interface {
	Process(ctx context.Context, path string, originalLanguage string) *models.ProcessResult
}

// Pool manages the worker goroutines.
type Pool struct {
	mu sync.RWMutex

	queue    *queue.Manager
	pipeline Pipeline
	cache    repository.MetadataCacheRepository
	cfg      *config.Config
	logger   *slog.Logger

	workerCount  int
	pollInterval time.Duration
	jobTimeout   time.Duration

	active atomic.Int32

	// Running state
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a worker pool. cache may be nil when TMDB caching is
// disabled; the maintenance sweep then skips it.
func NewPool(q *queue.Manager, pipeline Pipeline, cache repository.MetadataCacheRepository, cfg *config.Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		queue:        q,
		pipeline:     pipeline,
		cache:        cache,
		cfg:          cfg,
		logger:       logger,
		workerCount:  cfg.Processing.WorkerCount,
		pollInterval: time.Second,
		// Ceiling above the slowest tool chain: probe, track count, and a
		// full remux each carry their own subprocess timeout.
		jobTimeout: cfg.Processing.Timeout() + 5*time.Minute,
	}
}

// WithPollInterval overrides the empty-queue backoff, mainly for tests.
func (p *Pool) WithPollInterval(interval time.Duration) *Pool {
	if interval > 0 {
		p.pollInterval = interval
	}
	return p
}

// Start recovers orphaned jobs and launches the workers. Recovery must
// finish before the first claim: any job still marked running was abandoned
// by a previous process.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		return fmt.Errorf("worker pool already started")
	}

	orphaned, err := p.queue.FailOrphanedRunning(ctx)
	if err != nil {
		return fmt.Errorf("recovering orphaned jobs: %w", err)
	}
	if orphaned > 0 {
		p.logger.Warn("failed orphaned jobs from previous run", "count", orphaned)
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	schedule, err := p.cfg.Processing.CleanupCron()
	if err != nil {
		p.cancel()
		p.ctx = nil
		return fmt.Errorf("parsing cleanup schedule: %w", err)
	}
	p.wg.Add(1)
	go p.maintenance(schedule)

	p.logger.Info("worker pool started",
		"workers", p.workerCount,
		"poll_interval", p.pollInterval,
		"max_mp4_concurrent", p.cfg.Processing.MaxMP4Concurrent)
	return nil
}

// Stop shuts the pool down and waits for in-flight jobs to finish. Workers
// never abandon a claimed job; each completes its current pipeline run
// before exiting.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	p.ctx = nil
	p.cancel = nil
	p.mu.Unlock()

	p.logger.Info("worker pool stopped")
}

// WorkersTotal returns the configured pool size.
func (p *Pool) WorkersTotal() int {
	return p.workerCount
}

// WorkersActive returns how many workers are executing a job right now.
func (p *Pool) WorkersActive() int {
	return int(p.active.Load())
}

// Running reports whether the pool has been started and not yet stopped.
func (p *Pool) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ctx != nil && p.ctx.Err() == nil
}

var errNoJobs = errors.New("no jobs available")

// worker is the claim-execute loop.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("worker started", "worker", id)

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("worker stopping", "worker", id)
			return
		default:
			if err := p.processNext(id); err != nil {
				if !errors.Is(err, errNoJobs) {
					p.logger.Error("error processing job", "worker", id, "error", err)
				}
				select {
				case <-p.ctx.Done():
					return
				case <-time.After(p.pollInterval):
				}
			}
		}
	}
}

// processNext claims and executes one job. The MP4 concurrency cap is
// enforced inside the claim itself, so a returned job is always runnable.
func (p *Pool) processNext(workerID int) error {
	job, err := p.queue.Next(p.ctx)
	if err != nil {
		return fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return errNoJobs
	}

	p.active.Add(1)
	defer p.active.Add(-1)

	p.logger.Info("job claimed",
		"worker", workerID,
		"job_id", job.JobID,
		"file", job.FilePath,
		"container", job.Container,
		"priority", job.Priority)

	// The job runs on its own context: a pool shutdown must not abort an
	// in-flight mutation, so only the timeout applies.
	jobCtx, cancel := context.WithTimeout(context.Background(), p.jobTimeout)
	defer cancel()

	result := p.pipeline.Process(jobCtx, job.FilePath, job.OriginalLanguage)
	p.record(workerID, job, result)
	return nil
}

// record translates the pipeline's terminal result into a job transition.
// Skips and dry runs complete the job; the reason lands on the transition
// event. Failures and errors fail it with the message.
func (p *Pool) record(workerID int, job *models.Job, result *models.ProcessResult) {
	to := models.JobStatusCompleted
	upd := queue.TransitionUpdate{Note: result.Reason}

	switch result.Status {
	case models.ResultSuccess, models.ResultSkipped, models.ResultDryRun:
		if result.SelectedTrack != nil {
			upd.SelectedTrackIndex = &result.SelectedTrack.Index
			upd.SelectedTrackLanguage = &result.SelectedTrack.Language
		}
		if result.Status == models.ResultDryRun {
			upd.Note = "dry_run"
		}
	case models.ResultFailed, models.ResultError:
		to = models.JobStatusFailed
		upd.ErrorMessage = result.Error
		if upd.ErrorMessage == "" {
			upd.ErrorMessage = result.Reason
		}
	}

	// Recording happens even mid-shutdown; otherwise the job would be
	// orphaned despite having finished.
	if _, err := p.queue.Transition(context.Background(), job.JobID, to, upd); err != nil {
		p.logger.Error("failed to record job result",
			"worker", workerID, "job_id", job.JobID, "status", to, "error", err)
		return
	}

	switch result.Status {
	case models.ResultSuccess:
		p.logger.Info("job completed",
			"worker", workerID,
			"job_id", job.JobID,
			"track", result.SelectedTrack.Index,
			"language", result.SelectedTrack.Language,
			"duration_ms", result.DurationMs)
	case models.ResultSkipped, models.ResultDryRun:
		p.logger.Info("job completed without mutation",
			"worker", workerID,
			"job_id", job.JobID,
			"result", result.Status,
			"reason", result.Reason)
	default:
		p.logger.Error("job failed",
			"worker", workerID,
			"job_id", job.JobID,
			"error", upd.ErrorMessage)
	}
}

// maintenance prunes old terminal jobs and expired cache entries whenever
// the cron schedule fires.
func (p *Pool) maintenance(schedule cron.Schedule) {
	defer p.wg.Done()

	for {
		next := schedule.Next(time.Now())
		select {
		case <-p.ctx.Done():
			return
		case <-time.After(time.Until(next)):
			p.performMaintenance()
		}
	}
}

func (p *Pool) performMaintenance() {
	retention := p.cfg.Processing.CleanupRetention()

	pruned, err := p.queue.PruneOlderThan(p.ctx, retention)
	if err != nil {
		p.logger.Error("failed to prune old jobs", "error", err)
	} else if pruned > 0 {
		p.logger.Info("pruned old jobs", "removed", pruned, "retention", retention)
	}

	if p.cache == nil {
		return
	}
	expired, err := p.cache.DeleteExpired(p.ctx)
	if err != nil {
		p.logger.Error("failed to sweep metadata cache", "error", err)
	} else if expired > 0 {
		p.logger.Info("swept expired metadata cache entries", "removed", expired)
	}
}
