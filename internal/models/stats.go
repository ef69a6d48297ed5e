package models

// QueueStats aggregates job counts by status, as reported by the store in a
// single query.
type QueueStats struct {
	Total     int64 `json:"total_jobs"`
	Queued    int64 `json:"queued"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

// GroupStats is the aggregate view over all jobs sharing a webhook_id or
// batch_id. AllCompleted is true once every job is terminal; AnyFailed is
// true if at least one failed. Upstream callers drive retries from these.
type GroupStats struct {
	TotalJobs    int  `json:"total_jobs"`
	AllCompleted bool `json:"all_completed"`
	AnyFailed    bool `json:"any_failed"`
}

// GroupStatsFor computes the aggregate flags over a job list.
func GroupStatsFor(jobs []*Job) GroupStats {
	gs := GroupStats{TotalJobs: len(jobs), AllCompleted: len(jobs) > 0}
	for _, j := range jobs {
		if !j.IsTerminal() {
			gs.AllCompleted = false
		}
		if j.Status == JobStatusFailed {
			gs.AnyFailed = true
		}
	}
	return gs
}
