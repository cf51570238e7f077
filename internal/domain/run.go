package domain

import "time"

// RunRecord captures the result of a single bot invocation
type RunRecord struct {
	ID         string
	Branch     string
	PRNumber   int
	Outcome    RunOutcome
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Acted returns true if the run got far enough to touch the repository
func (r *RunRecord) Acted() bool {
	switch r.Outcome {
	case OutcomeSkippedLock, OutcomeSkippedQuota:
		return false
	}
	return true
}
