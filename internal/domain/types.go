package domain

import "time"

// ReviewState represents the lifecycle state of a review request
type ReviewState string

const (
	ReviewCreated        ReviewState = "created"
	ReviewMergeAttempted ReviewState = "merge_attempted"
	ReviewManuallyMerged ReviewState = "manually_merged"
	ReviewAbandoned      ReviewState = "abandoned"
)

// RunOutcome represents the terminal state of one bot run
type RunOutcome string

const (
	OutcomeSkippedLock    RunOutcome = "skipped_lock"
	OutcomeSkippedQuota   RunOutcome = "skipped_quota"
	OutcomeSyncFailed     RunOutcome = "sync_failed"
	OutcomeBranchFailed   RunOutcome = "branch_failed"
	OutcomePushFailed     RunOutcome = "push_failed"
	OutcomeRequestFailed  RunOutcome = "request_failed"
	OutcomeMerged         RunOutcome = "merged"
	// OutcomeAutoMergeEnabled means the merge was queued behind required
	// checks, not completed during the run.
	OutcomeAutoMergeEnabled RunOutcome = "auto_merge_enabled"
	OutcomeManuallyMerged RunOutcome = "manually_merged"
	OutcomeAbandoned      RunOutcome = "abandoned"
)

// BranchHandle identifies the work branch owned by a single run.
// The time component in Name makes it unique across runs.
type BranchHandle struct {
	Name       string
	BaseBranch string
	CreatedAt  time.Time
}

// ReviewRequest tracks one pull request through the review flow.
// It is transient and never persisted across runs.
type ReviewRequest struct {
	Branch BranchHandle
	Title  string
	Body   string
	Number int
	State  ReviewState
	// AutoMergeQueued distinguishes a merge handed off to the platform's
	// auto-merge from one that completed immediately.
	AutoMergeQueued bool
}

// ActivityTemplate describes one simulated engineering activity
type ActivityTemplate struct {
	Label    string
	Subject  string
	Progress []string
}
