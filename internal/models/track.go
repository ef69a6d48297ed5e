package models

import "fmt"

// AudioTrack describes one audio stream found by the prober. Transient;
// never persisted.
type AudioTrack struct {
	// Index is the 0-based position among audio streams only.
	Index int `json:"index"`

	// StreamIndex is the absolute stream position within the container.
	StreamIndex int `json:"stream_index"`

	// Codec is the codec name reported by the prober, e.g. "aac", "ac3".
	Codec string `json:"codec"`

	// Language is the 3-letter ISO 639-2 tag; "und" when the container
	// carries none.
	Language string `json:"language"`

	// Title is the optional track name.
	Title string `json:"title,omitempty"`

	// IsDefault reflects the container's default disposition flag.
	IsDefault bool `json:"is_default"`

	// Channels is the channel count when reported.
	Channels int `json:"channels,omitempty"`

	// Bitrate is in bits per second when reported.
	Bitrate int64 `json:"bitrate,omitempty"`
}

// String returns a human-readable one-line description.
func (t AudioTrack) String() string {
	s := fmt.Sprintf("track %d: %s %s", t.Index, t.Language, t.Codec)
	if t.Title != "" {
		s += fmt.Sprintf(" (%s)", t.Title)
	}
	if t.IsDefault {
		s += " [default]"
	}
	return s
}

// ProbeResult is the prober's view of a file: its container class and the
// ordered audio track list.
type ProbeResult struct {
	Container   Container    `json:"container"`
	Unsupported bool         `json:"unsupported"`
	FormatName  string       `json:"format_name"`
	AudioTracks []AudioTrack `json:"audio_tracks"`
}
