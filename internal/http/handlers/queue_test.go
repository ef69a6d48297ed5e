package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/audiarr/internal/models"
	"github.com/jmylchreest/audiarr/internal/queue"
)

type fakePool struct {
	total   int
	active  int
	running bool
}

func (p *fakePool) WorkersTotal() int  { return p.total }
func (p *fakePool) WorkersActive() int { return p.active }
func (p *fakePool) Running() bool      { return p.running }

func newQueueHandler(t *testing.T) (*QueueHandler, *queue.Manager) {
	t.Helper()
	q, _ := newQueueManager(t)
	return NewQueueHandler(q, &fakePool{total: 2, active: 1, running: true}), q
}

func submitJob(t *testing.T, q *queue.Manager, req queue.SubmitRequest) *models.Job {
	t.Helper()
	job, err := q.Submit(context.Background(), req)
	require.NoError(t, err)
	return job
}

func TestQueueHandler_StartBatch(t *testing.T) {
	h, q := newQueueHandler(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.mkv")
	writeFile(t, dir, "season 1/b.mp4")
	writeFile(t, dir, "notes.txt")

	in := &StartBatchInput{}
	in.Body.Path = dir
	out, err := h.StartBatch(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "started", out.Body.Status)
	assert.Equal(t, 2, out.Body.TotalFiles)
	assert.Len(t, out.Body.JobIDs, 2)
	assert.True(t, strings.HasPrefix(out.Body.BatchID, "batch_"))

	jobs, err := q.ListByBatch(context.Background(), out.Body.BatchID)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	for _, j := range jobs {
		assert.Equal(t, models.JobPriorityNormal, j.Priority)
		assert.Equal(t, models.JobSourceManual, j.Source)
	}
}

func TestQueueHandler_StartBatch_Priority(t *testing.T) {
	h, q := newQueueHandler(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.mkv")

	in := &StartBatchInput{}
	in.Body.Path = dir
	in.Body.Priority = "low"
	out, err := h.StartBatch(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "started", out.Body.Status)

	jobs, err := q.ListByBatch(context.Background(), out.Body.BatchID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobPriorityLow, jobs[0].Priority)
}

func TestQueueHandler_StartBatch_NonRecursive(t *testing.T) {
	h, _ := newQueueHandler(t)
	dir := t.TempDir()
	writeFile(t, dir, "season 1/b.mkv")

	recursive := false
	in := &StartBatchInput{}
	in.Body.Path = dir
	in.Body.Recursive = &recursive
	out, err := h.StartBatch(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "rejected", out.Body.Status)
	assert.Equal(t, "no files found matching criteria", out.Body.Message)
}

func TestQueueHandler_StartBatch_NoMatches(t *testing.T) {
	h, _ := newQueueHandler(t)

	in := &StartBatchInput{}
	in.Body.Path = t.TempDir()
	out, err := h.StartBatch(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "rejected", out.Body.Status)
	assert.Equal(t, "no files found matching criteria", out.Body.Message)
	assert.Empty(t, out.Body.JobIDs)
}

func TestQueueHandler_StartBatch_DryRun(t *testing.T) {
	h, q := newQueueHandler(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.mkv")

	in := &StartBatchInput{}
	in.Body.Path = dir
	in.Body.DryRun = true
	out, err := h.StartBatch(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "started", out.Body.Status)
	assert.Zero(t, out.Body.TotalFiles)
	assert.Empty(t, out.Body.JobIDs)
	assert.Contains(t, out.Body.Message, "dry run")

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestQueueHandler_StartBatch_BadPath(t *testing.T) {
	h, _ := newQueueHandler(t)

	in := &StartBatchInput{}
	in.Body.Path = "/does/not/exist"
	out, err := h.StartBatch(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "rejected", out.Body.Status)
	assert.Contains(t, out.Body.Message, "batch failed")
}

func TestQueueHandler_GetQueue(t *testing.T) {
	h, q := newQueueHandler(t)
	dir := t.TempDir()
	for _, name := range []string{"a.mkv", "b.mkv", "c.mp4"} {
		submitJob(t, q, queue.SubmitRequest{Path: writeFile(t, dir, name)})
	}

	out, err := h.GetQueue(context.Background(), &GetQueueInput{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), out.Body.TotalJobs)
	assert.Equal(t, int64(3), out.Body.Queued)
	assert.Zero(t, out.Body.Running)
	assert.Equal(t, 1, out.Body.WorkersActive)
	assert.Equal(t, 2, out.Body.WorkersTotal)
}

func TestQueueHandler_GetJob(t *testing.T) {
	h, q := newQueueHandler(t)
	job := submitJob(t, q, queue.SubmitRequest{Path: writeFile(t, t.TempDir(), "a.mkv")})

	out, err := h.GetJob(context.Background(), &GetJobInput{ID: job.JobID})
	require.NoError(t, err)

	assert.Equal(t, job.JobID, out.Body.JobID)
	assert.Equal(t, "queued", out.Body.Status)
	assert.Equal(t, "mkv", out.Body.Container)
	assert.Equal(t, job.FilePath, out.Body.FilePath)
}

func TestQueueHandler_GetJob_NotFound(t *testing.T) {
	h, _ := newQueueHandler(t)

	_, err := h.GetJob(context.Background(), &GetJobInput{ID: "job_missing00000"})
	assertStatus(t, err, http.StatusNotFound)
}

func TestQueueHandler_CancelJob(t *testing.T) {
	h, q := newQueueHandler(t)
	job := submitJob(t, q, queue.SubmitRequest{Path: writeFile(t, t.TempDir(), "a.mkv")})

	out, err := h.CancelJob(context.Background(), &CancelJobInput{ID: job.JobID})
	require.NoError(t, err)

	assert.Equal(t, "success", out.Body.Status)
	assert.Contains(t, out.Body.Message, job.JobID)

	got, err := q.Get(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, got.Status)
}

func TestQueueHandler_CancelJob_NotFound(t *testing.T) {
	h, _ := newQueueHandler(t)

	_, err := h.CancelJob(context.Background(), &CancelJobInput{ID: "job_missing00000"})
	assertStatus(t, err, http.StatusNotFound)
}

func TestQueueHandler_CancelJob_AlreadyRunning(t *testing.T) {
	h, q := newQueueHandler(t)
	job := submitJob(t, q, queue.SubmitRequest{Path: writeFile(t, t.TempDir(), "a.mkv")})

	claimed, err := q.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, job.JobID, claimed.JobID)

	_, err = h.CancelJob(context.Background(), &CancelJobInput{ID: job.JobID})
	assertStatus(t, err, http.StatusBadRequest)
	assert.Contains(t, err.Error(), "running")
}

func TestQueueHandler_GetWebhookJobs(t *testing.T) {
	h, q := newQueueHandler(t)
	dir := t.TempDir()
	webhookID := models.NewWebhookID()
	j1 := submitJob(t, q, queue.SubmitRequest{
		Path: writeFile(t, dir, "e1.mkv"), WebhookID: webhookID, Source: models.JobSourceSonarr,
	})
	j2 := submitJob(t, q, queue.SubmitRequest{
		Path: writeFile(t, dir, "e2.mkv"), WebhookID: webhookID, Source: models.JobSourceSonarr,
	})

	out, err := h.GetWebhookJobs(context.Background(), &GetWebhookJobsInput{ID: webhookID})
	require.NoError(t, err)
	assert.Equal(t, webhookID, out.Body.GroupID)
	assert.Equal(t, "sonarr", out.Body.Source)
	assert.Equal(t, 2, out.Body.TotalJobs)
	assert.Len(t, out.Body.Jobs, 2)
	assert.False(t, out.Body.AllCompleted)
	assert.False(t, out.Body.AnyFailed)

	// Finish one, fail the other: the group is terminal with a failure.
	ctx := context.Background()
	for _, id := range []string{j1.JobID, j2.JobID} {
		_, err := q.Transition(ctx, id, models.JobStatusRunning, queue.TransitionUpdate{})
		require.NoError(t, err)
	}
	_, err = q.Transition(ctx, j1.JobID, models.JobStatusCompleted, queue.TransitionUpdate{})
	require.NoError(t, err)
	_, err = q.Transition(ctx, j2.JobID, models.JobStatusFailed, queue.TransitionUpdate{ErrorMessage: "mkvpropedit exited 2"})
	require.NoError(t, err)

	out, err = h.GetWebhookJobs(ctx, &GetWebhookJobsInput{ID: webhookID})
	require.NoError(t, err)
	assert.True(t, out.Body.AllCompleted)
	assert.True(t, out.Body.AnyFailed)
}

func TestQueueHandler_GetWebhookJobs_NotFound(t *testing.T) {
	h, _ := newQueueHandler(t)

	_, err := h.GetWebhookJobs(context.Background(), &GetWebhookJobsInput{ID: "wh_missing000000"})
	assertStatus(t, err, http.StatusNotFound)
}

func TestQueueHandler_GetBatchJobs(t *testing.T) {
	h, _ := newQueueHandler(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.mkv")
	writeFile(t, dir, "b.mkv")

	in := &StartBatchInput{}
	in.Body.Path = dir
	started, err := h.StartBatch(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "started", started.Body.Status)

	out, err := h.GetBatchJobs(context.Background(), &GetBatchJobsInput{ID: started.Body.BatchID})
	require.NoError(t, err)
	assert.Equal(t, started.Body.BatchID, out.Body.GroupID)
	assert.Equal(t, "manual", out.Body.Source)
	assert.Equal(t, 2, out.Body.TotalJobs)
	assert.False(t, out.Body.AllCompleted)
}

func TestQueueHandler_GetBatchJobs_NotFound(t *testing.T) {
	h, _ := newQueueHandler(t)

	_, err := h.GetBatchJobs(context.Background(), &GetBatchJobsInput{ID: "batch_missing000"})
	assertStatus(t, err, http.StatusNotFound)
}

func TestQueueHandler_ListJobEvents(t *testing.T) {
	h, q := newQueueHandler(t)
	job := submitJob(t, q, queue.SubmitRequest{Path: writeFile(t, t.TempDir(), "a.mkv")})

	ctx := context.Background()
	claimed, err := q.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	_, err = q.Transition(ctx, job.JobID, models.JobStatusCompleted, queue.TransitionUpdate{Note: "default flipped"})
	require.NoError(t, err)

	out, err := h.ListJobEvents(ctx, &ListJobEventsInput{ID: job.JobID})
	require.NoError(t, err)

	assert.Equal(t, job.JobID, out.Body.JobID)
	require.Len(t, out.Body.Events, 3)
	assert.Equal(t, "queued", out.Body.Events[0].ToStatus)
	assert.Equal(t, "running", out.Body.Events[1].ToStatus)
	assert.Equal(t, "completed", out.Body.Events[2].ToStatus)
	assert.Equal(t, "default flipped", out.Body.Events[2].Note)
}

func TestQueueHandler_ListJobEvents_NotFound(t *testing.T) {
	h, _ := newQueueHandler(t)

	_, err := h.ListJobEvents(context.Background(), &ListJobEventsInput{ID: "job_missing00000"})
	assertStatus(t, err, http.StatusNotFound)
}

func TestQueueHandler_GetStats(t *testing.T) {
	h, q := newQueueHandler(t)
	dir := t.TempDir()
	submitJob(t, q, queue.SubmitRequest{Path: writeFile(t, dir, "a.mkv")})
	submitJob(t, q, queue.SubmitRequest{Path: writeFile(t, dir, "b.mp4")})

	out, err := h.GetStats(context.Background(), &GetStatsInput{})
	require.NoError(t, err)

	assert.Equal(t, int64(2), out.Body.QueueStats.Queued)
	assert.Equal(t, 2, out.Body.WorkerStats.TotalWorkers)
	assert.Equal(t, 1, out.Body.WorkerStats.ActiveWorkers)
	assert.Equal(t, 1, out.Body.WorkerStats.IdleWorkers)
	assert.True(t, out.Body.WorkerStats.PoolRunning)
	assert.GreaterOrEqual(t, out.Body.UptimeSeconds, 0.0)
}
