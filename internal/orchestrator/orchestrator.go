// Package orchestrator ties the run together: it walks a pushed work
// branch through pull request creation, merge attempts and fallback
// paths, and guarantees the repository is back on the base branch with
// the work branch cleaned up on every exit path.
package orchestrator

import (
	"fmt"
	"time"

	"github.com/hochfrequenz/activity-bot/internal/domain"
	"github.com/hochfrequenz/activity-bot/internal/gitops"
	"github.com/hochfrequenz/activity-bot/internal/lifecycle"
	"github.com/hochfrequenz/activity-bot/internal/review"
	"github.com/hochfrequenz/activity-bot/internal/worklog"
)

// Orchestrator runs the review flow for one pushed branch
type Orchestrator struct {
	platform review.Platform
	git      gitops.Client
	lc       *lifecycle.Controller
	log      *worklog.Log
	remote   string

	mergeSettle time.Duration
	sleep       func(time.Duration)
}

// New creates an Orchestrator. mergeSettle is the fixed delay before
// the first merge attempt, giving the platform time to register the
// freshly created request.
func New(platform review.Platform, git gitops.Client, lc *lifecycle.Controller, log *worklog.Log, remote string, mergeSettle time.Duration) *Orchestrator {
	return &Orchestrator{
		platform:    platform,
		git:         git,
		lc:          lc,
		log:         log,
		remote:      remote,
		mergeSettle: mergeSettle,
		sleep:       time.Sleep,
	}
}

// Run executes the review state machine for a pushed branch. Review
// platform failures never propagate: every path falls through to the
// next recovery strategy and ends in CleanupBranch.
func (o *Orchestrator) Run(branch domain.BranchHandle, activity domain.ActivityTemplate) domain.ReviewRequest {
	req := domain.ReviewRequest{
		Branch: branch,
		Title:  activity.Subject,
		Body:   buildRequestBody(activity, branch),
	}

	num, err := o.platform.CreateRequest(req.Title, req.Body, branch.BaseBranch, branch.Name)
	if err != nil {
		o.log.Errorf("pull request creation failed: %v", err)
		req.State = domain.ReviewAbandoned
		o.CleanupBranch(branch)
		return req
	}
	req.Number = num
	req.State = domain.ReviewCreated
	o.log.Infof("created pull request #%d for %s", num, branch.Name)

	o.sleep(o.mergeSettle)
	req.State = domain.ReviewMergeAttempted
	err = o.platform.MergeRequest(num)
	if err == nil {
		o.log.Infof("merged pull request #%d", num)
		o.CleanupBranch(branch)
		return req
	}
	o.log.Warnf("auto merge of #%d failed: %v", num, err)

	err = o.platform.EnableAutoMerge(num)
	if err == nil {
		o.log.Infof("enabled auto-merge on #%d", num)
		req.AutoMergeQueued = true
		o.CleanupBranch(branch)
		return req
	}
	o.log.Warnf("auto-merge flag on #%d failed: %v", num, err)

	if err := o.manualMerge(branch); err != nil {
		o.log.Errorf("manual merge of %s failed: %v", branch.Name, err)
		req.State = domain.ReviewAbandoned
	} else {
		o.log.Infof("manually merged %s into %s", branch.Name, branch.BaseBranch)
		req.State = domain.ReviewManuallyMerged
	}
	o.CleanupBranch(branch)
	return req
}

// manualMerge switches safely to base, re-syncs it with the remote,
// merges the work branch locally and pushes base.
func (o *Orchestrator) manualMerge(branch domain.BranchHandle) error {
	if err := o.lc.SafeSwitchBranch(branch.BaseBranch); err != nil {
		return fmt.Errorf("switch to %s: %w", branch.BaseBranch, err)
	}
	if err := o.lc.EnsureBaseSynced(); err != nil {
		return fmt.Errorf("resync %s: %w", branch.BaseBranch, err)
	}
	if err := o.git.Merge(branch.Name); err != nil {
		return fmt.Errorf("merge %s: %w", branch.Name, err)
	}
	if err := o.git.Push(o.remote, branch.BaseBranch); err != nil {
		return fmt.Errorf("push %s: %w", branch.BaseBranch, err)
	}
	return nil
}

// CleanupBranch returns the working tree to the base branch, deletes
// the work branch locally and remotely, and restores any stash saved
// during the run. Idempotent: a branch that is already gone only
// produces a warning.
func (o *Orchestrator) CleanupBranch(branch domain.BranchHandle) {
	cur, err := o.git.CurrentBranch()
	if err != nil || cur != branch.BaseBranch {
		if err := o.lc.SafeSwitchBranch(branch.BaseBranch); err != nil {
			o.log.Errorf("could not return to %s during cleanup: %v", branch.BaseBranch, err)
		}
	}

	if err := o.git.DeleteBranch(branch.Name); err != nil {
		o.log.Warnf("could not delete local branch %s (may already be gone): %v", branch.Name, err)
	}
	if err := o.git.DeleteRemoteBranch(o.remote, branch.Name); err != nil {
		o.log.Warnf("could not delete remote branch %s (may already be gone): %v", branch.Name, err)
	}

	o.lc.RestoreStashIfAny()
}

func buildRequestBody(activity domain.ActivityTemplate, branch domain.BranchHandle) string {
	return fmt.Sprintf(`## Summary
%s

Recorded on %s from branch %s.

---
Automated housekeeping commit by Activity Bot
`, activity.Label, branch.CreatedAt.Format("2006-01-02 15:04"), branch.Name)
}
