package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/audiarr/internal/config"
	"github.com/jmylchreest/audiarr/internal/models"
	"github.com/jmylchreest/audiarr/internal/repository"
)

// extProber classifies by file extension, standing in for ffprobe.
type extProber struct {
	failFor map[string]error
}

func (p *extProber) Probe(_ context.Context, path string) (*models.ProbeResult, error) {
	if err, ok := p.failFor[filepath.Base(path)]; ok {
		return nil, err
	}
	switch filepath.Ext(path) {
	case ".mkv":
		return &models.ProbeResult{Container: models.ContainerMKV, FormatName: "matroska,webm"}, nil
	case ".mp4":
		return &models.ProbeResult{Container: models.ContainerMP4, FormatName: "mov,mp4,m4a,3gp,3g2,mj2"}, nil
	}
	return &models.ProbeResult{Unsupported: true, FormatName: "avi"}, nil
}

func newTestManager(t *testing.T) (*Manager, repository.JobRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Job{}, &models.JobEvent{}))

	repo := repository.NewJobRepository(db)
	return NewManager(repo, &extProber{}, config.Default(), nil), repo
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestManager_Submit(t *testing.T) {
	m, repo := newTestManager(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "show.mkv")

	job, err := m.Submit(ctx, SubmitRequest{Path: path, OriginalLanguage: "jpn"})
	require.NoError(t, err)

	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, models.JobPriorityNormal, job.Priority)
	assert.Equal(t, models.JobSourceManual, job.Source)
	assert.Equal(t, models.ContainerMKV, job.Container)
	assert.Equal(t, "jpn", job.OriginalLanguage)
	assert.True(t, filepath.IsAbs(job.FilePath))

	events, err := repo.ListEvents(ctx, job.JobID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.JobStatusQueued, events[0].ToStatus)
}

func TestManager_Submit_ResolvesSymlinks(t *testing.T) {
	m, _ := newTestManager(t)
	dir := t.TempDir()
	real := writeFile(t, dir, "show.mkv")
	link := filepath.Join(dir, "link.mkv")
	require.NoError(t, os.Symlink(real, link))

	job, err := m.Submit(context.Background(), SubmitRequest{Path: link})
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(real)
	require.NoError(t, err)
	assert.Equal(t, resolved, job.FilePath)
}

func TestManager_Submit_Rejections(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("unsupported container", func(t *testing.T) {
		path := writeFile(t, dir, "old.avi")
		_, err := m.Submit(ctx, SubmitRequest{Path: path})
		var unsupported models.ErrUnsupportedContainer
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "avi", unsupported.Format)
	})

	t.Run("disabled container", func(t *testing.T) {
		m2, _ := newTestManager(t)
		m2.cfg.Containers.MP4 = false
		path := writeFile(t, dir, "movie.mp4")
		_, err := m2.Submit(ctx, SubmitRequest{Path: path})
		var disabled models.ErrContainerDisabled
		require.ErrorAs(t, err, &disabled)
		assert.Equal(t, models.ContainerMP4, disabled.Container)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := m.Submit(ctx, SubmitRequest{Path: filepath.Join(dir, "nope.mkv")})
		assert.Error(t, err)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := m.Submit(ctx, SubmitRequest{Path: ""})
		assert.ErrorIs(t, err, models.ErrFilePathRequired)
	})

	t.Run("invalid priority", func(t *testing.T) {
		path := writeFile(t, dir, "show.mkv")
		_, err := m.Submit(ctx, SubmitRequest{Path: path, Priority: "urgent"})
		assert.ErrorIs(t, err, models.ErrInvalidPriority)
	})

	t.Run("invalid source", func(t *testing.T) {
		path := writeFile(t, dir, "show2.mkv")
		_, err := m.Submit(ctx, SubmitRequest{Path: path, Source: "cron"})
		assert.ErrorIs(t, err, models.ErrInvalidSource)
	})
}

func TestManager_Submit_QueueFull(t *testing.T) {
	m, _ := newTestManager(t)
	m.cfg.Processing.MaxQueueSize = 1
	ctx := context.Background()
	dir := t.TempDir()

	_, err := m.Submit(ctx, SubmitRequest{Path: writeFile(t, dir, "a.mkv")})
	require.NoError(t, err)

	_, err = m.Submit(ctx, SubmitRequest{Path: writeFile(t, dir, "b.mkv")})
	assert.ErrorIs(t, err, models.ErrQueueFull)
}

// Priority order: jobs submitted A(low), B(normal), C(high), D(normal) must
// be claimed as C, B, D, A.
func TestManager_Next_PriorityOrder(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	dir := t.TempDir()

	submissions := []struct {
		name     string
		priority models.JobPriority
	}{
		{"a.mkv", models.JobPriorityLow},
		{"b.mkv", models.JobPriorityNormal},
		{"c.mkv", models.JobPriorityHigh},
		{"d.mkv", models.JobPriorityNormal},
	}
	ids := map[string]string{}
	for _, s := range submissions {
		job, err := m.Submit(ctx, SubmitRequest{Path: writeFile(t, dir, s.name), Priority: s.priority})
		require.NoError(t, err)
		ids[s.name] = job.JobID
		time.Sleep(2 * time.Millisecond) // distinct created_at for FIFO within a class
	}

	var claimed []string
	for i := 0; i < 4; i++ {
		job, err := m.Next(ctx)
		require.NoError(t, err)
		require.NotNil(t, job)
		claimed = append(claimed, job.JobID)
	}

	assert.Equal(t, []string{ids["c.mkv"], ids["b.mkv"], ids["d.mkv"], ids["a.mkv"]}, claimed)

	job, err := m.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, job, "drained queue returns nil")
}

func TestManager_SubmitBatch(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "a.mkv")
	writeFile(t, dir, "sub/b.mp4")
	writeFile(t, dir, "sub/c.txt")

	batchID, jobs, err := m.SubmitBatch(ctx, BatchRequest{Path: dir, Recursive: true})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.NotEmpty(t, batchID)
	for _, job := range jobs {
		assert.Equal(t, batchID, job.BatchID)
		assert.Equal(t, models.JobSourceManual, job.Source)
	}

	listed, err := m.ListByBatch(ctx, batchID)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestManager_SubmitBatch_DryRunInsertsNothing(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "a.mkv")
	writeFile(t, dir, "b.mp4")

	batchID, jobs, err := m.SubmitBatch(ctx, BatchRequest{Path: dir, DryRun: true})
	require.NoError(t, err)
	assert.NotEmpty(t, batchID)
	assert.Empty(t, jobs)

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestManager_SubmitBatch_OneBadCandidateDoesNotAbort(t *testing.T) {
	m, _ := newTestManager(t)
	m.prober = &extProber{failFor: map[string]error{"bad.mkv": errors.New("probe exploded")}}
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "bad.mkv")
	writeFile(t, dir, "good.mkv")

	_, jobs, err := m.SubmitBatch(ctx, BatchRequest{Path: dir})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "good.mkv", filepath.Base(jobs[0].FilePath))
}

func TestManager_SubmitBatch_MissingDirectory(t *testing.T) {
	m, _ := newTestManager(t)

	_, _, err := m.SubmitBatch(context.Background(), BatchRequest{Path: "/nonexistent"})
	assert.Error(t, err)
}

func TestManager_Transition_Lifecycle(t *testing.T) {
	m, repo := newTestManager(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "show.mkv")

	job, err := m.Submit(ctx, SubmitRequest{Path: path})
	require.NoError(t, err)

	running, err := m.Transition(ctx, job.JobID, models.JobStatusRunning, TransitionUpdate{})
	require.NoError(t, err)
	assert.NotNil(t, running.StartedAt)

	index := 1
	language := "jpn"
	done, err := m.Transition(ctx, job.JobID, models.JobStatusCompleted, TransitionUpdate{
		SelectedTrackIndex:    &index,
		SelectedTrackLanguage: &language,
	})
	require.NoError(t, err)
	assert.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.Success)
	assert.True(t, *done.Success)
	assert.Equal(t, 1, *done.SelectedTrackIndex)
	assert.Equal(t, "jpn", *done.SelectedTrackLanguage)

	events, err := repo.ListEvents(ctx, job.JobID)
	require.NoError(t, err)
	require.Len(t, events, 3) // created, queued->running, running->completed
	assert.Equal(t, models.JobStatusCompleted, events[2].ToStatus)
}

func TestManager_Transition_Illegal(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	dir := t.TempDir()

	terminal := func(path string) string {
		job, err := m.Submit(ctx, SubmitRequest{Path: path})
		require.NoError(t, err)
		_, err = m.Transition(ctx, job.JobID, models.JobStatusRunning, TransitionUpdate{})
		require.NoError(t, err)
		_, err = m.Transition(ctx, job.JobID, models.JobStatusCompleted, TransitionUpdate{})
		require.NoError(t, err)
		return job.JobID
	}

	tests := []struct {
		name  string
		setup func() (jobID string)
		to    models.JobStatus
	}{
		{
			name: "queued to completed",
			setup: func() string {
				job, err := m.Submit(ctx, SubmitRequest{Path: writeFile(t, dir, "q1.mkv")})
				require.NoError(t, err)
				return job.JobID
			},
			to: models.JobStatusCompleted,
		},
		{
			name: "running to cancelled",
			setup: func() string {
				job, err := m.Submit(ctx, SubmitRequest{Path: writeFile(t, dir, "r1.mkv")})
				require.NoError(t, err)
				_, err = m.Transition(ctx, job.JobID, models.JobStatusRunning, TransitionUpdate{})
				require.NoError(t, err)
				return job.JobID
			},
			to: models.JobStatusCancelled,
		},
		{
			name: "running back to queued",
			setup: func() string {
				job, err := m.Submit(ctx, SubmitRequest{Path: writeFile(t, dir, "r2.mkv")})
				require.NoError(t, err)
				_, err = m.Transition(ctx, job.JobID, models.JobStatusRunning, TransitionUpdate{})
				require.NoError(t, err)
				return job.JobID
			},
			to: models.JobStatusQueued,
		},
		{
			name:  "completed to running",
			setup: func() string { return terminal(writeFile(t, dir, "t1.mkv")) },
			to:    models.JobStatusRunning,
		},
		{
			name:  "completed to failed",
			setup: func() string { return terminal(writeFile(t, dir, "t2.mkv")) },
			to:    models.JobStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobID := tt.setup()
			before, err := m.Get(ctx, jobID)
			require.NoError(t, err)

			_, err = m.Transition(ctx, jobID, tt.to, TransitionUpdate{})
			var illegal models.ErrIllegalTransition
			require.ErrorAs(t, err, &illegal)
			assert.Equal(t, before.Status, illegal.From)
			assert.Equal(t, tt.to, illegal.To)

			after, err := m.Get(ctx, jobID)
			require.NoError(t, err)
			assert.Equal(t, before.Status, after.Status, "record must be untouched")
		})
	}
}

func TestManager_Cancel(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("queued job cancels", func(t *testing.T) {
		job, err := m.Submit(ctx, SubmitRequest{Path: writeFile(t, dir, "a.mkv")})
		require.NoError(t, err)

		cancelled, err := m.Cancel(ctx, job.JobID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCancelled, cancelled.Status)
		assert.NotNil(t, cancelled.CompletedAt)
	})

	t.Run("running job does not", func(t *testing.T) {
		job, err := m.Submit(ctx, SubmitRequest{Path: writeFile(t, dir, "b.mkv")})
		require.NoError(t, err)
		_, err = m.Transition(ctx, job.JobID, models.JobStatusRunning, TransitionUpdate{})
		require.NoError(t, err)

		_, err = m.Cancel(ctx, job.JobID)
		assert.ErrorIs(t, err, models.ErrNotCancellable)
	})

	t.Run("cancelled job stays cancelled", func(t *testing.T) {
		job, err := m.Submit(ctx, SubmitRequest{Path: writeFile(t, dir, "c.mkv")})
		require.NoError(t, err)
		_, err = m.Cancel(ctx, job.JobID)
		require.NoError(t, err)

		_, err = m.Cancel(ctx, job.JobID)
		assert.ErrorIs(t, err, models.ErrNotCancellable)
	})

	t.Run("unknown job", func(t *testing.T) {
		_, err := m.Cancel(ctx, "job_missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestManager_Stats(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	dir := t.TempDir()

	for _, name := range []string{"a.mkv", "b.mkv", "c.mkv"} {
		_, err := m.Submit(ctx, SubmitRequest{Path: writeFile(t, dir, name)})
		require.NoError(t, err)
	}
	job, err := m.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Queued)
	assert.Equal(t, int64(1), stats.Running)
}

func TestManager_RunningMP4Count(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := m.Submit(ctx, SubmitRequest{Path: writeFile(t, dir, "a.mp4")})
	require.NoError(t, err)
	_, err = m.Submit(ctx, SubmitRequest{Path: writeFile(t, dir, "b.mkv")})
	require.NoError(t, err)

	count, err := m.RunningMP4Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	claimed, err := m.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, models.ContainerMP4, claimed.Container)

	count, err = m.RunningMP4Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestManager_PruneOlderThan(t *testing.T) {
	m, repo := newTestManager(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "old.mkv")

	job, err := m.Submit(ctx, SubmitRequest{Path: path})
	require.NoError(t, err)
	_, err = m.Transition(ctx, job.JobID, models.JobStatusRunning, TransitionUpdate{})
	require.NoError(t, err)
	_, err = m.Transition(ctx, job.JobID, models.JobStatusFailed, TransitionUpdate{ErrorMessage: "boom"})
	require.NoError(t, err)

	// Backdate the completion to simulate an old record.
	stale, err := repo.Get(ctx, job.JobID)
	require.NoError(t, err)
	old := models.Now().Add(-40 * 24 * time.Hour)
	stale.CompletedAt = &old
	require.NoError(t, repo.Update(ctx, stale))

	removed, err := m.PruneOlderThan(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = m.Get(ctx, job.JobID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestManager_ListEvents_UnknownJob(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.ListEvents(context.Background(), "job_missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
