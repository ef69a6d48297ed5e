package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/audiarr/internal/models"
	"github.com/jmylchreest/audiarr/internal/queue"
)

// WorkerPool is the pool surface the queue handlers report on.
type WorkerPool interface {
	WorkersTotal() int
	WorkersActive() int
	Running() bool
}

// QueueHandler handles queue, job, and batch API endpoints.
type QueueHandler struct {
	queue     *queue.Manager
	pool      WorkerPool
	startTime time.Time
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(q *queue.Manager, pool WorkerPool) *QueueHandler {
	return &QueueHandler{
		queue:     q,
		pool:      pool,
		startTime: time.Now(),
	}
}

// Register registers the queue routes with the API.
func (h *QueueHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "startBatch",
		Method:      "POST",
		Path:        "/api/v1/batch",
		Summary:     "Start batch processing",
		Description: "Scans a directory and creates one job per matching file",
		Tags:        []string{"Jobs"},
	}, h.StartBatch)

	huma.Register(api, huma.Operation{
		OperationID: "getQueue",
		Method:      "GET",
		Path:        "/api/v1/queue",
		Summary:     "Get queue status",
		Description: "Returns job counts by status and worker occupancy",
		Tags:        []string{"Jobs"},
	}, h.GetQueue)

	huma.Register(api, huma.Operation{
		OperationID: "getJob",
		Method:      "GET",
		Path:        "/api/v1/jobs/{id}",
		Summary:     "Get job",
		Description: "Returns a job by ID",
		Tags:        []string{"Jobs"},
	}, h.GetJob)

	huma.Register(api, huma.Operation{
		OperationID: "cancelJob",
		Method:      "DELETE",
		Path:        "/api/v1/jobs/{id}",
		Summary:     "Cancel job",
		Description: "Cancels a queued job; running or finished jobs cannot be cancelled",
		Tags:        []string{"Jobs"},
	}, h.CancelJob)

	huma.Register(api, huma.Operation{
		OperationID: "listJobEvents",
		Method:      "GET",
		Path:        "/api/v1/jobs/{id}/events",
		Summary:     "List job events",
		Description: "Returns a job's status transition history, oldest first",
		Tags:        []string{"Jobs"},
	}, h.ListJobEvents)

	huma.Register(api, huma.Operation{
		OperationID: "getWebhookJobs",
		Method:      "GET",
		Path:        "/api/v1/webhook/{id}",
		Summary:     "Get webhook jobs",
		Description: "Returns all jobs created by one webhook delivery with completion flags",
		Tags:        []string{"Jobs"},
	}, h.GetWebhookJobs)

	huma.Register(api, huma.Operation{
		OperationID: "getBatchJobs",
		Method:      "GET",
		Path:        "/api/v1/batch/{id}",
		Summary:     "Get batch jobs",
		Description: "Returns all jobs created by one batch submission with completion flags",
		Tags:        []string{"Jobs"},
	}, h.GetBatchJobs)

	huma.Register(api, huma.Operation{
		OperationID: "getStats",
		Method:      "GET",
		Path:        "/api/v1/stats",
		Summary:     "Get statistics",
		Description: "Returns queue and worker pool statistics",
		Tags:        []string{"Jobs"},
	}, h.GetStats)
}

// StartBatchInput is the input for starting a batch.
type StartBatchInput struct {
	Body struct {
		Path      string `json:"path" minLength:"1" doc:"Directory to scan"`
		Recursive *bool  `json:"recursive,omitempty" doc:"Scan subdirectories (default: true)"`
		Pattern   string `json:"pattern,omitempty" doc:"Glob pattern; defaults to *.mkv and *.mp4"`
		DryRun    bool   `json:"dry_run,omitempty" doc:"Probe and log candidates without creating jobs"`
		Priority  string `json:"priority,omitempty" enum:"high,normal,low" doc:"Job priority (default: normal)"`
	}
}

// StartBatchOutput is the output for starting a batch.
type StartBatchOutput struct {
	Body BatchResponse
}

// StartBatch scans a directory and submits every matching file.
func (h *QueueHandler) StartBatch(ctx context.Context, input *StartBatchInput) (*StartBatchOutput, error) {
	recursive := true
	if input.Body.Recursive != nil {
		recursive = *input.Body.Recursive
	}

	batchID, jobs, err := h.queue.SubmitBatch(ctx, queue.BatchRequest{
		Path:      input.Body.Path,
		Pattern:   input.Body.Pattern,
		Recursive: recursive,
		Priority:  models.JobPriority(input.Body.Priority),
		DryRun:    input.Body.DryRun,
	})
	if err != nil {
		return &StartBatchOutput{Body: BatchResponse{
			Status:  "rejected",
			Message: fmt.Sprintf("batch failed: %v", err),
		}}, nil
	}

	if input.Body.DryRun {
		return &StartBatchOutput{Body: BatchResponse{
			Status:  "started",
			BatchID: batchID,
			Message: "dry run: candidates probed and logged, no jobs created",
		}}, nil
	}

	if len(jobs) == 0 {
		return &StartBatchOutput{Body: BatchResponse{
			Status:  "rejected",
			Message: "no files found matching criteria",
		}}, nil
	}

	jobIDs := make([]string, 0, len(jobs))
	for _, j := range jobs {
		jobIDs = append(jobIDs, j.JobID)
	}
	return &StartBatchOutput{Body: BatchResponse{
		Status:     "started",
		BatchID:    batchID,
		TotalFiles: len(jobs),
		JobIDs:     jobIDs,
		Message:    fmt.Sprintf("batch started with %d files", len(jobs)),
	}}, nil
}

// GetQueueInput is the input for the queue status endpoint.
type GetQueueInput struct{}

// GetQueueOutput is the output for the queue status endpoint.
type GetQueueOutput struct {
	Body QueueResponse
}

// GetQueue returns job counts and worker occupancy.
func (h *QueueHandler) GetQueue(ctx context.Context, input *GetQueueInput) (*GetQueueOutput, error) {
	stats, err := h.queue.Stats(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get queue status", err)
	}
	return &GetQueueOutput{Body: h.queueResponse(stats)}, nil
}

// GetJobInput is the input for getting a job.
type GetJobInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// GetJobOutput is the output for getting a job.
type GetJobOutput struct {
	Body JobResponse
}

// GetJob returns a job by id.
func (h *QueueHandler) GetJob(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
	job, err := h.queue.Get(ctx, input.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, huma.Error404NotFound(fmt.Sprintf("job %s not found", input.ID))
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get job", err)
	}
	return &GetJobOutput{Body: JobFromModel(job)}, nil
}

// CancelJobInput is the input for cancelling a job.
type CancelJobInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// CancelJobOutput is the output for cancelling a job.
type CancelJobOutput struct {
	Body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
}

// CancelJob cancels a queued job. Jobs in any other state return 400.
func (h *QueueHandler) CancelJob(ctx context.Context, input *CancelJobInput) (*CancelJobOutput, error) {
	job, err := h.queue.Get(ctx, input.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, huma.Error404NotFound(fmt.Sprintf("job %s not found", input.ID))
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to cancel job", err)
	}
	if job.Status != models.JobStatusQueued {
		return nil, huma.Error400BadRequest(fmt.Sprintf("cannot cancel job in status: %s", job.Status))
	}

	if _, err := h.queue.Cancel(ctx, input.ID); err != nil {
		// A worker may have claimed the job between the check and the cancel.
		if errors.Is(err, models.ErrNotCancellable) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to cancel job", err)
	}

	resp := &CancelJobOutput{}
	resp.Body.Status = "success"
	resp.Body.Message = fmt.Sprintf("job %s cancelled", input.ID)
	return resp, nil
}

// ListJobEventsInput is the input for listing job events.
type ListJobEventsInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// ListJobEventsOutput is the output for listing job events.
type ListJobEventsOutput struct {
	Body struct {
		JobID  string             `json:"job_id"`
		Events []JobEventResponse `json:"events"`
	}
}

// ListJobEvents returns a job's audit trail.
func (h *QueueHandler) ListJobEvents(ctx context.Context, input *ListJobEventsInput) (*ListJobEventsOutput, error) {
	events, err := h.queue.ListEvents(ctx, input.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, huma.Error404NotFound(fmt.Sprintf("job %s not found", input.ID))
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list job events", err)
	}

	resp := &ListJobEventsOutput{}
	resp.Body.JobID = input.ID
	resp.Body.Events = make([]JobEventResponse, 0, len(events))
	for _, e := range events {
		resp.Body.Events = append(resp.Body.Events, JobEventFromModel(e))
	}
	return resp, nil
}

// GetWebhookJobsInput is the input for the webhook group view.
type GetWebhookJobsInput struct {
	ID string `path:"id" doc:"Webhook ID"`
}

// GetBatchJobsInput is the input for the batch group view.
type GetBatchJobsInput struct {
	ID string `path:"id" doc:"Batch ID"`
}

// GroupJobsOutput is the output for the group views.
type GroupJobsOutput struct {
	Body GroupJobsResponse
}

// GetWebhookJobs returns all jobs created by one webhook delivery.
func (h *QueueHandler) GetWebhookJobs(ctx context.Context, input *GetWebhookJobsInput) (*GroupJobsOutput, error) {
	jobs, err := h.queue.ListByWebhook(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get webhook jobs", err)
	}
	if len(jobs) == 0 {
		return nil, huma.Error404NotFound(fmt.Sprintf("no jobs found for webhook %s", input.ID))
	}
	return &GroupJobsOutput{Body: groupResponse(input.ID, jobs)}, nil
}

// GetBatchJobs returns all jobs created by one batch submission.
func (h *QueueHandler) GetBatchJobs(ctx context.Context, input *GetBatchJobsInput) (*GroupJobsOutput, error) {
	jobs, err := h.queue.ListByBatch(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get batch jobs", err)
	}
	if len(jobs) == 0 {
		return nil, huma.Error404NotFound(fmt.Sprintf("no jobs found for batch %s", input.ID))
	}
	return &GroupJobsOutput{Body: groupResponse(input.ID, jobs)}, nil
}

// GetStatsInput is the input for the statistics endpoint.
type GetStatsInput struct{}

// GetStatsOutput is the output for the statistics endpoint.
type GetStatsOutput struct {
	Body StatsResponse
}

// GetStats returns queue and worker pool statistics.
func (h *QueueHandler) GetStats(ctx context.Context, input *GetStatsInput) (*GetStatsOutput, error) {
	stats, err := h.queue.Stats(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get stats", err)
	}

	total := h.pool.WorkersTotal()
	active := h.pool.WorkersActive()
	return &GetStatsOutput{Body: StatsResponse{
		QueueStats: h.queueResponse(stats),
		WorkerStats: WorkerStats{
			TotalWorkers:  total,
			ActiveWorkers: active,
			IdleWorkers:   total - active,
			PoolRunning:   h.pool.Running(),
		},
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}}, nil
}

func (h *QueueHandler) queueResponse(stats *models.QueueStats) QueueResponse {
	return QueueResponse{
		TotalJobs:     stats.Total,
		Queued:        stats.Queued,
		Running:       stats.Running,
		Completed:     stats.Completed,
		Failed:        stats.Failed,
		Cancelled:     stats.Cancelled,
		WorkersActive: h.pool.WorkersActive(),
		WorkersTotal:  h.pool.WorkersTotal(),
	}
}

func groupResponse(groupID string, jobs []*models.Job) GroupJobsResponse {
	gs := models.GroupStatsFor(jobs)
	return GroupJobsResponse{
		GroupID:      groupID,
		Source:       string(jobs[0].Source),
		TotalJobs:    gs.TotalJobs,
		Jobs:         JobsFromModels(jobs),
		AllCompleted: gs.AllCompleted,
		AnyFailed:    gs.AnyFailed,
	}
}
