package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hochfrequenz/activity-bot/internal/domain"
	"github.com/hochfrequenz/activity-bot/internal/gitops"
	"github.com/hochfrequenz/activity-bot/internal/lifecycle"
	"github.com/hochfrequenz/activity-bot/internal/lockfile"
	"github.com/hochfrequenz/activity-bot/internal/quota"
	"github.com/hochfrequenz/activity-bot/internal/worklog"
)

type fixedCatalog struct{ activity domain.ActivityTemplate }

func (f fixedCatalog) Pick(intn func(n int) int) domain.ActivityTemplate { return f.activity }

type runnerEnv struct {
	runner   *Runner
	git      *gitops.FakeClient
	platform *fakePlatform
	log      *worklog.Log
	quota    *quota.Tracker
	dataDir  string
}

func newRunnerEnv(t *testing.T) *runnerEnv {
	t.Helper()
	dataDir := t.TempDir()
	repoDir := t.TempDir()

	log := worklog.New(filepath.Join(dataDir, "activity.log"))
	git := gitops.NewFakeClient("main")
	platform := &fakePlatform{number: 42}

	lc := lifecycle.NewController(git, log, lifecycle.Options{
		RepoDir:      repoDir,
		BaseBranch:   "main",
		Remote:       "origin",
		ActivityFile: "ACTIVITY.md",
	})
	orch := New(platform, git, lc, log, "origin", 0)
	orch.sleep = func(time.Duration) {}

	tr := quota.NewTracker(filepath.Join(dataDir, "quota.toml"), 8, 15, time.UTC, log)

	r := &Runner{
		Lock:    lockfile.New(filepath.Join(dataDir, "lock")),
		Quota:   tr,
		Log:     log,
		LC:      lc,
		Orch:    orch,
		Catalog: fixedCatalog{domain.ActivityTemplate{Label: "cleanup logging", Subject: "chore: clean up logging", Progress: []string{"a", "b", "c"}}},
		Now:     func() time.Time { return time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC) },
		Intn:    func(n int) int { return 0 },
	}
	return &runnerEnv{runner: r, git: git, platform: platform, log: log, quota: tr, dataDir: dataDir}
}

func TestRunOnce_FirstRunOfTheDay(t *testing.T) {
	env := newRunnerEnv(t)

	rec, err := env.runner.RunOnce()
	if err != nil {
		t.Fatal(err)
	}

	if rec.Outcome != domain.OutcomeMerged {
		t.Errorf("Outcome = %q, want merged", rec.Outcome)
	}
	if rec.PRNumber != 42 {
		t.Errorf("PRNumber = %d, want 42", rec.PRNumber)
	}
	if !strings.HasPrefix(rec.Branch, "auto/cleanup-logging-") {
		t.Errorf("Branch = %q, want auto/<slug>-<timestamp>", rec.Branch)
	}

	// Quota tracking was created with one consumed action.
	s, err := env.quota.Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.Date != "2026-08-25" || s.Consumed != 1 {
		t.Errorf("quota state = %+v, want date today, consumed 1", s)
	}
	if s.Target < 8 || s.Target > 15 {
		t.Errorf("Target = %d, want within [8,15]", s.Target)
	}

	// The flushed log carries the NEW DAY marker and the PR entry.
	data, err := os.ReadFile(filepath.Join(env.dataDir, "activity.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "NEW DAY") {
		t.Error("flushed log should contain the NEW DAY marker")
	}
	if !strings.Contains(string(data), "created pull request #42") {
		t.Error("flushed log should contain the PR-created entry")
	}

	// Lock is released in finalization.
	if !env.runner.Lock.TryAcquire() {
		t.Error("lock should be free after the run")
	}
}

func TestRunOnce_LockContentionSilentSkip(t *testing.T) {
	env := newRunnerEnv(t)
	if !env.runner.Lock.TryAcquire() {
		t.Fatal("setup acquire failed")
	}

	rec, err := env.runner.RunOnce()
	if err != nil {
		t.Fatal(err)
	}
	if rec.Outcome != domain.OutcomeSkippedLock {
		t.Errorf("Outcome = %q, want skipped_lock", rec.Outcome)
	}
	if len(env.git.Calls) != 0 {
		t.Errorf("git calls = %v, want none on lock contention", env.git.Calls)
	}
}

func TestRunOnce_TrustedBypassesLock(t *testing.T) {
	env := newRunnerEnv(t)
	env.runner.Trusted = true
	if !env.runner.Lock.TryAcquire() {
		t.Fatal("setup acquire failed")
	}

	rec, err := env.runner.RunOnce()
	if err != nil {
		t.Fatal(err)
	}
	if rec.Outcome != domain.OutcomeMerged {
		t.Errorf("Outcome = %q, want merged despite held lock", rec.Outcome)
	}
}

func TestRunOnce_AutoMergeQueuedIsReportedDistinctly(t *testing.T) {
	env := newRunnerEnv(t)
	env.platform.mergeErr = fmt.Errorf("required checks pending")

	rec, err := env.runner.RunOnce()
	if err != nil {
		t.Fatal(err)
	}
	if rec.Outcome != domain.OutcomeAutoMergeEnabled {
		t.Errorf("Outcome = %q, want auto_merge_enabled when the merge is only queued", rec.Outcome)
	}
	if rec.PRNumber != 42 {
		t.Errorf("PRNumber = %d, want 42", rec.PRNumber)
	}
}

func TestRunOnce_QuotaExhausted(t *testing.T) {
	env := newRunnerEnv(t)
	// Pin the target draw to exactly 8 by collapsing the bounds.
	env.runner.Quota = quota.NewTracker(filepath.Join(env.dataDir, "quota.toml"), 8, 8, time.UTC, env.log)

	for i := 0; i < 8; i++ {
		if _, err := env.runner.RunOnce(); err != nil {
			t.Fatal(err)
		}
	}

	rec, err := env.runner.RunOnce()
	if err != nil {
		t.Fatal(err)
	}
	if rec.Outcome != domain.OutcomeSkippedQuota {
		t.Errorf("Outcome = %q, want skipped_quota after target runs", rec.Outcome)
	}
}

func TestRunOnce_SyncFailureFatal(t *testing.T) {
	env := newRunnerEnv(t)
	env.git.Fail("fetch")

	rec, err := env.runner.RunOnce()
	if err == nil {
		t.Fatal("sync failure must be returned")
	}
	if rec.Outcome != domain.OutcomeSyncFailed {
		t.Errorf("Outcome = %q, want sync_failed", rec.Outcome)
	}
	// No branch was created.
	for _, op := range env.git.CalledOps() {
		if op == "checkout-new" {
			t.Error("no branch may be created after a failed sync")
		}
	}
	// Lock still released.
	if !env.runner.Lock.TryAcquire() {
		t.Error("lock should be released after a fatal sync failure")
	}
	// Quota was still spent: throttle-first by design.
	s, _ := env.quota.Load()
	if s.Consumed != 1 {
		t.Errorf("Consumed = %d, want 1 even though the action failed", s.Consumed)
	}
}

func TestRunOnce_PushFailureEndsWithoutPR(t *testing.T) {
	env := newRunnerEnv(t)
	env.git.Fail("push")

	rec, err := env.runner.RunOnce()
	if err != nil {
		t.Fatalf("push failure must not be fatal, got %v", err)
	}
	if rec.Outcome != domain.OutcomePushFailed {
		t.Errorf("Outcome = %q, want push_failed", rec.Outcome)
	}
	if len(env.platform.calls) != 0 {
		t.Errorf("platform calls = %v, want none without a pushed branch", env.platform.calls)
	}
	if env.git.Branch != "main" {
		t.Errorf("final branch = %q, cleanup must return to base", env.git.Branch)
	}
}

func TestRunOnce_CreationFailureLoggedAndCleaned(t *testing.T) {
	env := newRunnerEnv(t)
	env.platform.createErr = fmt.Errorf("gh pr create: exit status 1")

	rec, err := env.runner.RunOnce()
	if err != nil {
		t.Fatalf("platform failure must not be fatal, got %v", err)
	}
	if rec.Outcome != domain.OutcomeRequestFailed {
		t.Errorf("Outcome = %q, want request_failed", rec.Outcome)
	}
	if env.git.Branch != "main" {
		t.Errorf("final branch = %q, want main", env.git.Branch)
	}

	data, _ := os.ReadFile(filepath.Join(env.dataDir, "activity.log"))
	if !strings.Contains(string(data), "pull request creation failed") {
		t.Error("flushed log should contain the creation-failed entry")
	}
}
