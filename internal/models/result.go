package models

import "fmt"

// ResultStatus classifies the terminal outcome of one pipeline run.
type ResultStatus string

const (
	// ResultSuccess means the default flag was changed.
	ResultSuccess ResultStatus = "success"
	// ResultSkipped means no mutation was needed or possible; not an error.
	ResultSkipped ResultStatus = "skipped"
	// ResultFailed means the mutator ran and failed.
	ResultFailed ResultStatus = "failed"
	// ResultError means an unexpected failure in probe or selection.
	ResultError ResultStatus = "error"
	// ResultDryRun means a mutation was identified but not executed.
	ResultDryRun ResultStatus = "dry_run"
)

// Skip and failure reason tags carried on pipeline results.
const (
	ReasonUnsupportedContainer = "unsupported_container"
	ReasonMKVDisabled          = "mkv_disabled"
	ReasonMP4Disabled          = "mp4_disabled"
	ReasonNoAudioTracks        = "no_audio_tracks"
	ReasonNoMatchingTrack      = "no_matching_track"
	ReasonAlreadyCorrect       = "already_correct"
	ReasonExecutionFailed      = "execution_failed"
)

// Selection reason tags recorded by the selector.
const (
	SelectionReasonOriginalLanguage = "original_language"
	SelectionReasonPriorityList     = "priority_list"
	SelectionReasonNoMatch          = "no_match"
)

// ProcessResult is the terminal outcome of running the pipeline on one file.
type ProcessResult struct {
	Status        ResultStatus `json:"status"`
	FilePath      string       `json:"file_path"`
	SelectedTrack *AudioTrack  `json:"selected_track,omitempty"`
	Changed       bool         `json:"changed"`
	Reason        string       `json:"reason,omitempty"`
	Error         string       `json:"error,omitempty"`
	DurationMs    int64        `json:"duration_ms,omitempty"`
}

// String returns a human-readable one-line summary for CLI output.
func (r ProcessResult) String() string {
	switch r.Status {
	case ResultSuccess:
		return fmt.Sprintf("%s: track %d (%s) set as default",
			r.FilePath, r.SelectedTrack.Index, r.SelectedTrack.Language)
	case ResultSkipped:
		return fmt.Sprintf("%s: skipped (%s)", r.FilePath, r.Reason)
	case ResultDryRun:
		return fmt.Sprintf("%s: would set track %d (%s) as default (dry run)",
			r.FilePath, r.SelectedTrack.Index, r.SelectedTrack.Language)
	case ResultFailed:
		return fmt.Sprintf("%s: failed (%s)", r.FilePath, r.Error)
	default:
		return fmt.Sprintf("%s: error (%s)", r.FilePath, r.Error)
	}
}
