package models

// JobEvent is an append-only audit record written whenever a job changes
// status. Separate from the jobs table to keep it lean; events are written
// in the same transaction as the transition itself.
type JobEvent struct {
	BaseModel

	// JobID is the external identifier of the job that changed.
	JobID string `gorm:"not null;size:20;index:idx_job_events_job_id" json:"job_id"`

	// FromStatus is the pre-transition status; empty for creation.
	FromStatus JobStatus `gorm:"size:20" json:"from_status,omitempty"`

	// ToStatus is the post-transition status.
	ToStatus JobStatus `gorm:"not null;size:20" json:"to_status"`

	// Note carries stage context, e.g. the skip reason or error summary.
	Note string `gorm:"size:1024" json:"note,omitempty"`
}

// TableName returns the table name for JobEvent.
func (JobEvent) TableName() string {
	return "job_events"
}
