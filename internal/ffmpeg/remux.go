package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/jmylchreest/audiarr/pkg/bytesize"
)

// minRemuxSizeRatio is the smallest acceptable output/input size ratio; a
// stream-copy remux should never lose more than container overhead.
const minRemuxSizeRatio = 0.9

// MP4Remux sets the default audio disposition on MP4 files. MP4 has no
// in-place flag edit, so the file is fully remuxed (stream copy, no
// re-encode) to a temp file and swapped in atomically behind a backup.
type MP4Remux struct {
	ffmpegPath string
	prober     *Prober
	timeout    time.Duration
}

// NewMP4Remux creates an MP4 mutator.
func NewMP4Remux(ffmpegPath string, prober *Prober) *MP4Remux {
	return &MP4Remux{
		ffmpegPath: ffmpegPath,
		prober:     prober,
		timeout:    300 * time.Second,
	}
}

// WithTimeout sets the remux timeout.
func (m *MP4Remux) WithTimeout(timeout time.Duration) *MP4Remux {
	m.timeout = timeout
	return m
}

// SetDefaultAudioTrack remuxes path with the default disposition on audio
// track trackIndex (zero-based) and none on every other audio track.
//
// Sequence: disk preflight (2x file size free), track bound check, remux to
// a hidden temp in the same directory, size sanity check, backup copy,
// atomic rename over the original, backup removal. On any failure after the
// backup exists, the original is restored from it. The original path is
// never left missing.
func (m *MP4Remux) SetDefaultAudioTrack(ctx context.Context, path string, trackIndex int) error {
	info, err := os.Stat(path)
	if err != nil {
		return &MutateError{Path: path, Stage: "preflight", Err: err}
	}
	originalSize := info.Size()

	dir := filepath.Dir(path)
	if usage, err := disk.UsageWithContext(ctx, dir); err == nil {
		required := uint64(originalSize) * 2
		if usage.Free < required {
			return &MutateError{
				Path:  path,
				Stage: "preflight",
				Err: fmt.Errorf("%w: need %s, %s free in %s",
					ErrInsufficientSpace,
					bytesize.Format(bytesize.Size(required)),
					bytesize.Format(bytesize.Size(usage.Free)), dir),
			}
		}
	} else {
		slog.Warn("disk space check failed, continuing",
			slog.String("path", path),
			slog.Any("error", err))
	}

	trackCount, err := m.prober.CountAudioTracks(ctx, path)
	if err != nil {
		return &MutateError{Path: path, Stage: "preflight", Err: err}
	}
	if trackCount == 0 {
		return &MutateError{Path: path, Stage: "preflight", Err: ErrNoAudioTracks}
	}
	if trackIndex < 0 || trackIndex >= trackCount {
		return &MutateError{
			Path:  path,
			Stage: "preflight",
			Err:   fmt.Errorf("%w: index %d, file has %d", ErrInvalidTrack, trackIndex, trackCount),
		}
	}

	tempPath := filepath.Join(dir, "."+filepath.Base(path)+".tmp")
	backupPath := path + ".bak"

	if err := m.remux(ctx, path, tempPath, trackIndex, trackCount); err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := verifyRemuxOutput(tempPath, originalSize); err != nil {
		os.Remove(tempPath)
		return &MutateError{Path: path, Stage: "verify", Err: err}
	}

	if err := copyFile(path, backupPath); err != nil {
		os.Remove(tempPath)
		return &MutateError{Path: path, Stage: "swap", Err: fmt.Errorf("creating backup: %w", err)}
	}

	// Same-directory rename; the original is recoverable from the backup
	// until this succeeds.
	if err := os.Rename(tempPath, path); err != nil {
		restoreErr := copyFile(backupPath, path)
		os.Remove(tempPath)
		os.Remove(backupPath)
		if restoreErr != nil {
			return &MutateError{Path: path, Stage: "swap",
				Err: fmt.Errorf("replacing original: %w (restore failed: %v)", err, restoreErr)}
		}
		return &MutateError{Path: path, Stage: "swap", Err: fmt.Errorf("replacing original: %w", err)}
	}

	os.Remove(backupPath)

	slog.Debug("mp4 default audio track set",
		slog.String("path", path),
		slog.Int("track_index", trackIndex))
	return nil
}

// remux runs the ffmpeg stream-copy with the new audio dispositions.
func (m *MP4Remux) remux(ctx context.Context, src, dst string, trackIndex, trackCount int) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffmpegPath, buildRemuxArgs(src, dst, trackIndex, trackCount)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &MutateError{Path: src, Stage: "remux", Err: fmt.Errorf("timeout after %v", m.timeout)}
		}
		return &MutateError{Path: src, Stage: "remux", Err: fmt.Errorf("%w: %s", err, lastLine(output))}
	}
	return nil
}

// buildRemuxArgs assembles the ffmpeg arguments: map every stream, copy all
// codecs, rewrite only the audio default dispositions, faststart layout.
func buildRemuxArgs(src, dst string, trackIndex, trackCount int) []string {
	args := []string{
		"-i", src,
		"-map", "0",
		"-c", "copy",
	}
	for i := 0; i < trackCount; i++ {
		disposition := "0"
		if i == trackIndex {
			disposition = "default"
		}
		args = append(args, fmt.Sprintf("-disposition:a:%d", i), disposition)
	}
	return append(args, "-movflags", "+faststart", "-y", dst)
}

// verifyRemuxOutput checks the temp file exists, is non-empty, and did not
// shrink past the corruption threshold.
func verifyRemuxOutput(tempPath string, originalSize int64) error {
	info, err := os.Stat(tempPath)
	if err != nil {
		return fmt.Errorf("remux produced no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("remux produced empty output")
	}
	if originalSize > 0 {
		ratio := float64(info.Size()) / float64(originalSize)
		if ratio < minRemuxSizeRatio {
			return fmt.Errorf("remux output suspiciously small: %d of %d bytes (ratio %.2f)",
				info.Size(), originalSize, ratio)
		}
	}
	return nil
}

// copyFile copies src to dst, preserving the file mode.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// lastLine trims command output to its final non-empty line; ffmpeg puts the
// failure reason there.
func lastLine(output []byte) string {
	lines := strings.Split(string(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}
