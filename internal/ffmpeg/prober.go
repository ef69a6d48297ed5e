// Package ffmpeg wraps the external media tools: ffprobe for container and
// track inspection, mkvpropedit for in-place Matroska flag edits, and ffmpeg
// for MP4 remuxes.
package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/audiarr/internal/models"
)

// probeOutput mirrors the JSON document emitted by ffprobe.
type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

// probeFormat contains container format information.
type probeFormat struct {
	Filename       string            `json:"filename"`
	NumStreams     int               `json:"nb_streams"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	Tags           map[string]string `json:"tags"`
}

// probeStream contains stream information.
type probeStream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecType     string            `json:"codec_type"` // video, audio, subtitle, data
	Channels      int               `json:"channels,omitempty"`
	ChannelLayout string            `json:"channel_layout,omitempty"`
	BitRate       string            `json:"bit_rate,omitempty"`
	Disposition   probeDisposition  `json:"disposition,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// probeDisposition contains stream disposition flags.
type probeDisposition struct {
	Default int `json:"default"`
	Forced  int `json:"forced"`
}

// Prober inspects local media files with ffprobe.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a new file prober.
func NewProber(ffprobePath string) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     30 * time.Second,
	}
}

// WithTimeout sets the probe timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	p.timeout = timeout
	return p
}

// Probe inspects the file at path, classifies its container, and returns its
// audio tracks in stream order. An unrecognized container is reported via
// ProbeResult.Unsupported, not an error; errors mean the inspection itself
// failed.
func (p *Prober) Probe(ctx context.Context, path string) (*models.ProbeResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &ProbeError{Path: path, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &ProbeError{Path: path, Err: fmt.Errorf("probe timeout after %v", p.timeout)}
		}
		return nil, &ProbeError{Path: path, Err: fmt.Errorf("ffprobe failed: %w", err)}
	}

	var raw probeOutput
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, &ProbeError{Path: path, Err: fmt.Errorf("parsing ffprobe output: %w", err)}
	}

	return buildProbeResult(&raw), nil
}

// CountAudioTracks returns the number of audio streams in the file.
func (p *Prober) CountAudioTracks(ctx context.Context, path string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		path,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("counting audio tracks: %w", err)}
	}

	count := 0
	for _, line := range strings.Split(string(output), "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count, nil
}

// buildProbeResult converts raw ffprobe output into the domain view:
// container classification plus normalized audio tracks.
func buildProbeResult(raw *probeOutput) *models.ProbeResult {
	result := &models.ProbeResult{
		FormatName: raw.Format.FormatName,
	}

	switch classifyContainer(raw.Format.FormatName) {
	case models.ContainerMKV:
		result.Container = models.ContainerMKV
	case models.ContainerMP4:
		result.Container = models.ContainerMP4
	default:
		result.Unsupported = true
	}

	audioIdx := 0
	for _, stream := range raw.Streams {
		if stream.CodecType != "audio" {
			continue
		}

		track := models.AudioTrack{
			Index:       audioIdx,
			StreamIndex: stream.Index,
			Codec:       stream.CodecName,
			Language:    normalizeTag(stream.Tags["language"]),
			Title:       stream.Tags["title"],
			IsDefault:   stream.Disposition.Default == 1,
			Channels:    stream.Channels,
		}
		if stream.BitRate != "" {
			if br, err := strconv.ParseInt(stream.BitRate, 10, 64); err == nil {
				track.Bitrate = br
			}
		}

		result.AudioTracks = append(result.AudioTracks, track)
		audioIdx++
	}

	return result
}

// classifyContainer maps an ffprobe format_name to a processable container.
// ffprobe reports comma-separated demuxer aliases ("mov,mp4,m4a,3gp,..."),
// so substring matching is the reliable test. Returns "" when unsupported.
func classifyContainer(formatName string) models.Container {
	name := strings.ToLower(formatName)
	switch {
	case strings.Contains(name, "matroska"):
		return models.ContainerMKV
	case strings.Contains(name, "mp4"), strings.Contains(name, "mov"):
		return models.ContainerMP4
	}
	return ""
}

// normalizeTag lowercases a language tag, falling back to "und" (undefined)
// when the stream carries none.
func normalizeTag(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "und"
	}
	return lang
}
