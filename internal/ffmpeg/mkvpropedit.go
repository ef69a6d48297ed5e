package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// defaultMKVTrackGuess is used when the audio-track count cannot be queried;
// clearing the flag on track numbers past the end is harmless.
const defaultMKVTrackGuess = 10

// MKVPropEdit flips the default-track flag on Matroska files in place using
// mkvpropedit. Header edits only; stream data is never rewritten, so the
// operation is fast and needs no scratch space.
type MKVPropEdit struct {
	mkvpropeditPath string
	prober          *Prober
	timeout         time.Duration
}

// NewMKVPropEdit creates a Matroska mutator.
func NewMKVPropEdit(mkvpropeditPath string, prober *Prober) *MKVPropEdit {
	return &MKVPropEdit{
		mkvpropeditPath: mkvpropeditPath,
		prober:          prober,
		timeout:         60 * time.Second,
	}
}

// WithTimeout sets the mkvpropedit timeout.
func (m *MKVPropEdit) WithTimeout(timeout time.Duration) *MKVPropEdit {
	m.timeout = timeout
	return m
}

// SetDefaultAudioTrack clears the default flag on every audio track and sets
// it on trackIndex (zero-based), in a single mkvpropedit invocation.
// mkvpropedit numbers audio tracks from one. A failed run leaves the file
// untouched.
func (m *MKVPropEdit) SetDefaultAudioTrack(ctx context.Context, path string, trackIndex int) error {
	trackCount, err := m.prober.CountAudioTracks(ctx, path)
	if err != nil || trackCount == 0 {
		slog.Warn("could not determine audio track count, clearing a fixed range",
			slog.String("path", path),
			slog.Int("assumed_tracks", defaultMKVTrackGuess))
		trackCount = defaultMKVTrackGuess
	}

	args := []string{path}
	for i := 0; i < trackCount; i++ {
		args = append(args, "--edit", fmt.Sprintf("track:a%d", i+1), "--set", "flag-default=0")
	}
	args = append(args, "--edit", fmt.Sprintf("track:a%d", trackIndex+1), "--set", "flag-default=1")

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.mkvpropeditPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &MutateError{Path: path, Stage: "mkvpropedit", Err: fmt.Errorf("timeout after %v", m.timeout)}
		}
		return &MutateError{Path: path, Stage: "mkvpropedit", Err: fmt.Errorf("%w: %s", err, firstLine(output))}
	}

	slog.Debug("mkv default audio track set",
		slog.String("path", path),
		slog.Int("track_index", trackIndex))
	return nil
}

// firstLine trims command output to its first non-empty line for error
// messages.
func firstLine(output []byte) string {
	for _, line := range strings.Split(string(output), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}
