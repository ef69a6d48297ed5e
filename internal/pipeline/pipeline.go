// Package pipeline runs the per-file processing sequence: validate, probe,
// select, mutate. A Pipeline is synchronous and stateless between calls; it
// knows nothing about the job queue or the worker pool that drives it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jmylchreest/audiarr/internal/config"
	"github.com/jmylchreest/audiarr/internal/models"
)

// Prober reports the container class and audio track list of a file.
type Prober interface {
	Probe(ctx context.Context, path string) (*models.ProbeResult, error)
}

// TrackSelector picks the track that should carry the default flag.
type TrackSelector interface {
	Select(tracks []models.AudioTrack, path string, originalLanguage string) (*models.AudioTrack, string)
}

// Mutator rewrites a file so the given audio track (0-based among audio
// streams) carries the default disposition.
type Mutator interface {
	SetDefaultAudioTrack(ctx context.Context, path string, trackIndex int) error
}

// Pipeline orchestrates one file end to end. Construct with New; all
// collaborators are injected so tests can substitute fakes.
type Pipeline struct {
	prober   Prober
	selector TrackSelector
	mkv      Mutator
	mp4      Mutator
	cfg      *config.Config
	logger   *slog.Logger
}

// New creates a Pipeline. The mkv and mp4 mutators are chosen per file based
// on the probed container.
func New(prober Prober, selector TrackSelector, mkv, mp4 Mutator, cfg *config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		prober:   prober,
		selector: selector,
		mkv:      mkv,
		mp4:      mp4,
		cfg:      cfg,
		logger:   logger,
	}
}

// Process runs the full sequence on one file and always returns a terminal
// result; it never panics outward. originalLanguage is the metadata hint
// ("" when unknown).
//
// Outcomes, in evaluation order: error when the file is missing or the probe
// fails; skipped for unsupported or disabled containers, empty track lists,
// no selectable track, or an already-correct default; dry_run when mutation
// is switched off; success or failed from the mutator.
func (p *Pipeline) Process(ctx context.Context, path string, originalLanguage string) *models.ProcessResult {
	start := time.Now()
	res := &models.ProcessResult{FilePath: path}
	defer func() {
		res.DurationMs = time.Since(start).Milliseconds()
	}()

	p.logger.Info("processing file", "path", path)

	info, err := os.Stat(path)
	if err != nil {
		p.logger.Error("file not accessible", "path", path, "error", err)
		res.Status = models.ResultError
		res.Error = fmt.Sprintf("file not accessible: %v", err)
		return res
	}
	if !info.Mode().IsRegular() {
		p.logger.Error("not a regular file", "path", path)
		res.Status = models.ResultError
		res.Error = "not a regular file"
		return res
	}

	probe, err := p.prober.Probe(ctx, path)
	if err != nil {
		p.logger.Error("probe failed", "path", path, "error", err)
		res.Status = models.ResultError
		res.Error = err.Error()
		return res
	}

	if probe.Unsupported {
		p.logger.Info("skipping unsupported container", "path", path, "format", probe.FormatName)
		res.Status = models.ResultSkipped
		res.Reason = models.ReasonUnsupportedContainer
		return res
	}
	if !p.cfg.Containers.Enabled(string(probe.Container)) {
		p.logger.Info("container support disabled", "path", path, "container", probe.Container)
		res.Status = models.ResultSkipped
		res.Reason = disabledReason(probe.Container)
		return res
	}

	if len(probe.AudioTracks) == 0 {
		p.logger.Warn("no audio tracks found", "path", path)
		res.Status = models.ResultSkipped
		res.Reason = models.ReasonNoAudioTracks
		return res
	}

	track, selectionReason := p.selector.Select(probe.AudioTracks, path, originalLanguage)
	if track == nil {
		p.logger.Warn("no suitable track found",
			"path", path,
			"available_languages", trackLanguages(probe.AudioTracks))
		res.Status = models.ResultSkipped
		res.Reason = models.ReasonNoMatchingTrack
		return res
	}
	res.SelectedTrack = track

	if track.IsDefault && p.cfg.Execution.SkipIfCorrect {
		p.logger.Info("track already correct",
			"path", path, "track", track.Index, "language", track.Language)
		res.Status = models.ResultSkipped
		res.Reason = models.ReasonAlreadyCorrect
		return res
	}

	if p.cfg.Execution.DryRun {
		p.logger.Info("dry run: would set track as default",
			"path", path, "track", track.Index, "language", track.Language)
		res.Status = models.ResultDryRun
		return res
	}

	mutator := p.mkv
	if probe.Container == models.ContainerMP4 {
		mutator = p.mp4
	}
	if err := mutator.SetDefaultAudioTrack(ctx, path, track.Index); err != nil {
		p.logger.Error("mutation failed",
			"path", path, "track", track.Index, "error", err)
		res.Status = models.ResultFailed
		res.Reason = models.ReasonExecutionFailed
		res.Error = err.Error()
		return res
	}

	res.Status = models.ResultSuccess
	res.Changed = true
	p.logger.Info("file processed",
		"path", path,
		"track", track.Index,
		"language", track.Language,
		"container", probe.Container,
		"selection_reason", selectionReason)
	return res
}

func disabledReason(c models.Container) string {
	if c == models.ContainerMP4 {
		return models.ReasonMP4Disabled
	}
	return models.ReasonMKVDisabled
}

func trackLanguages(tracks []models.AudioTrack) []string {
	langs := make([]string, len(tracks))
	for i, t := range tracks {
		langs[i] = t.Language
	}
	return langs
}
