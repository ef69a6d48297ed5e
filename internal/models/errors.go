package models

import (
	"errors"
	"fmt"
)

// Common errors shared by the store, queue manager, and HTTP layer.
var (
	// ErrNotFound indicates the requested job does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyExists indicates a job_id collision on insert.
	ErrAlreadyExists = errors.New("job already exists")

	// ErrQueueFull indicates the queued backlog reached max_queue_size.
	ErrQueueFull = errors.New("queue is full")

	// ErrFilePathRequired indicates a required file path field is empty.
	ErrFilePathRequired = errors.New("file_path is required")

	// ErrInvalidPriority indicates an unknown priority value.
	ErrInvalidPriority = errors.New("invalid priority: must be 'high', 'normal' or 'low'")

	// ErrInvalidSource indicates an unknown source value.
	ErrInvalidSource = errors.New("invalid source: must be 'sonarr', 'radarr', 'manual' or 'retry'")

	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrNotCancellable indicates a cancel attempt on a job that already
	// left the queued state.
	ErrNotCancellable = errors.New("only queued jobs can be cancelled")
)

// ErrIllegalTransition reports a forbidden job state transition. These are
// programming errors and must never be swallowed.
type ErrIllegalTransition struct {
	JobID string
	From  JobStatus
	To    JobStatus
}

// Error implements the error interface.
func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal transition for job %s: %s -> %s", e.JobID, e.From, e.To)
}

// ErrUnsupportedContainer reports an admission rejection for a container the
// pipeline cannot mutate.
type ErrUnsupportedContainer struct {
	Path   string
	Format string
}

// Error implements the error interface.
func (e ErrUnsupportedContainer) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("unsupported container: %s", e.Path)
	}
	return fmt.Sprintf("unsupported container %q: %s", e.Format, e.Path)
}

// ErrContainerDisabled reports an admission rejection for a container type
// switched off in configuration.
type ErrContainerDisabled struct {
	Container Container
	Path      string
}

// Error implements the error interface.
func (e ErrContainerDisabled) Error() string {
	return fmt.Sprintf("%s processing is disabled: %s", e.Container, e.Path)
}
