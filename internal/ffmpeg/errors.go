package ffmpeg

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientSpace indicates the remux preflight found less than
	// twice the file size free on the containing filesystem.
	ErrInsufficientSpace = errors.New("insufficient disk space for remux")

	// ErrInvalidTrack indicates the requested audio track index is out of
	// range for the file.
	ErrInvalidTrack = errors.New("audio track index out of range")

	// ErrNoAudioTracks indicates the file has no audio tracks to mutate.
	ErrNoAudioTracks = errors.New("file has no audio tracks")
)

// ProbeError reports a failed file inspection: unreadable file, tool
// failure, unparseable output, or timeout.
type ProbeError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	return fmt.Sprintf("probing %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Err
}

// MutateError reports a failed default-flag mutation. Stage names the step
// that failed (preflight, remux, verify, swap, mkvpropedit).
type MutateError struct {
	Path  string
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *MutateError) Error() string {
	return fmt.Sprintf("mutating %s (%s): %v", e.Path, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutateError) Unwrap() error {
	return e.Err
}
