package orchestrator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/hochfrequenz/activity-bot/internal/domain"
	"github.com/hochfrequenz/activity-bot/internal/lifecycle"
	"github.com/hochfrequenz/activity-bot/internal/lockfile"
	"github.com/hochfrequenz/activity-bot/internal/notify"
	"github.com/hochfrequenz/activity-bot/internal/quota"
	"github.com/hochfrequenz/activity-bot/internal/runstore"
	"github.com/hochfrequenz/activity-bot/internal/worklog"
)

// Catalog supplies the activity to simulate for one run
type Catalog interface {
	Pick(intn func(n int) int) domain.ActivityTemplate
}

// Runner executes one complete bot invocation: lock, quota gate,
// branch lifecycle, review flow, finalization.
type Runner struct {
	Lock     *lockfile.Lock
	Quota    *quota.Tracker
	Log      *worklog.Log
	LC       *lifecycle.Controller
	Orch     *Orchestrator
	Catalog  Catalog
	Store    *runstore.Store // optional
	Notifier notify.Notifier
	Trusted  bool // trusted scheduler supplies its own mutual exclusion

	Now  func() time.Time
	Intn func(n int) int
}

// RunOnce performs a single scheduled invocation. Lock contention and
// an exhausted quota are silent skips, not errors. The activity log is
// flushed and the lock released in the finalization path regardless of
// how the run ends.
func (r *Runner) RunOnce() (rec domain.RunRecord, runErr error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	intn := r.Intn
	if intn == nil {
		intn = rand.Intn
	}

	rec = domain.RunRecord{
		ID:        uuid.NewString(),
		StartedAt: now(),
	}

	if !r.Trusted {
		if !r.Lock.TryAcquire() {
			rec.Outcome = domain.OutcomeSkippedLock
			rec.FinishedAt = now()
			return rec, nil
		}
		defer r.Lock.Release()
	}

	defer func() {
		rec.FinishedAt = now()
		if r.Store != nil {
			if err := r.Store.SaveRun(&rec); err != nil {
				r.Log.Warnf("could not record run: %v", err)
			}
		}
		if err := r.Log.Flush(); err != nil && runErr == nil {
			runErr = fmt.Errorf("flush activity log: %w", err)
		}
	}()

	act, err := r.Quota.ShouldActNow()
	if err != nil {
		runErr = fmt.Errorf("quota state: %w", err)
		rec.Outcome = domain.OutcomeSkippedQuota
		rec.Error = runErr.Error()
		r.Log.Errorf("%v", runErr)
		return rec, runErr
	}
	if !act {
		rec.Outcome = domain.OutcomeSkippedQuota
		r.Log.Infof("daily quota reached, skipping")
		return rec, nil
	}

	if err := r.LC.EnsureBaseSynced(); err != nil {
		// Fatal precondition: no branch was created, nothing to clean up.
		runErr = err
		rec.Outcome = domain.OutcomeSyncFailed
		rec.Error = err.Error()
		r.Log.Errorf("base sync failed: %v", err)
		return rec, runErr
	}

	activity := r.Catalog.Pick(intn)

	branch, err := r.LC.CreateWorkBranch(activity)
	if err != nil {
		runErr = err
		rec.Outcome = domain.OutcomeBranchFailed
		rec.Error = err.Error()
		r.Log.Errorf("branch creation failed: %v", err)
		return rec, runErr
	}
	rec.Branch = branch.Name

	if err := r.LC.RecordAndCommit(branch, activity); err != nil {
		// Logged, not fatal: the run ends without a PR attempt since
		// nothing was pushed, but the tree is still cleaned up.
		r.Log.Errorf("commit/push failed: %v", err)
		rec.Outcome = domain.OutcomePushFailed
		rec.Error = err.Error()
		r.Orch.CleanupBranch(branch)
		r.sendNotification(rec)
		return rec, nil
	}

	req := r.Orch.Run(branch, activity)
	rec.PRNumber = req.Number
	rec.Outcome = outcomeFor(req)
	r.sendNotification(rec)
	return rec, nil
}

func outcomeFor(req domain.ReviewRequest) domain.RunOutcome {
	switch req.State {
	case domain.ReviewMergeAttempted:
		if req.AutoMergeQueued {
			return domain.OutcomeAutoMergeEnabled
		}
		return domain.OutcomeMerged
	case domain.ReviewManuallyMerged:
		return domain.OutcomeManuallyMerged
	case domain.ReviewAbandoned:
		if req.Number == 0 {
			return domain.OutcomeRequestFailed
		}
		return domain.OutcomeAbandoned
	}
	return domain.OutcomeAbandoned
}

func (r *Runner) sendNotification(rec domain.RunRecord) {
	if r.Notifier == nil || !rec.Acted() {
		return
	}

	n := notify.Notification{
		Branch:   rec.Branch,
		PRNumber: rec.PRNumber,
	}
	switch rec.Outcome {
	case domain.OutcomeMerged, domain.OutcomeManuallyMerged:
		n.Title = "Activity run merged"
		n.Message = fmt.Sprintf("outcome: %s", rec.Outcome)
		n.Type = notify.NotifySuccess
	case domain.OutcomeAutoMergeEnabled:
		n.Title = "Activity run queued for auto-merge"
		n.Message = fmt.Sprintf("outcome: %s", rec.Outcome)
		n.Type = notify.NotifySuccess
	default:
		n.Title = "Activity run did not merge"
		n.Message = fmt.Sprintf("outcome: %s, error: %s", rec.Outcome, rec.Error)
		n.Type = notify.NotifyWarning
	}

	if err := r.Notifier.Send(n); err != nil {
		r.Log.Warnf("notification failed: %v", err)
	}
}
