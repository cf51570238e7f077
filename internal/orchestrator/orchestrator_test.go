package orchestrator

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hochfrequenz/activity-bot/internal/domain"
	"github.com/hochfrequenz/activity-bot/internal/gitops"
	"github.com/hochfrequenz/activity-bot/internal/lifecycle"
	"github.com/hochfrequenz/activity-bot/internal/worklog"
)

// fakePlatform scripts review-platform behavior per test
type fakePlatform struct {
	createErr    error
	mergeErr     error
	autoMergeErr error
	number       int
	calls        []string
}

func (f *fakePlatform) CreateRequest(title, body, base, head string) (int, error) {
	f.calls = append(f.calls, "create")
	if f.createErr != nil {
		return 0, f.createErr
	}
	return f.number, nil
}

func (f *fakePlatform) MergeRequest(number int) error {
	f.calls = append(f.calls, fmt.Sprintf("merge %d", number))
	return f.mergeErr
}

func (f *fakePlatform) EnableAutoMerge(number int) error {
	f.calls = append(f.calls, fmt.Sprintf("auto-merge %d", number))
	return f.autoMergeErr
}

func testBranch() domain.BranchHandle {
	return domain.BranchHandle{
		Name:       "auto/cleanup-logging-20260825-143007",
		BaseBranch: "main",
		CreatedAt:  time.Date(2026, 8, 25, 14, 30, 7, 0, time.UTC),
	}
}

func testActivity() domain.ActivityTemplate {
	return domain.ActivityTemplate{Label: "cleanup logging", Subject: "chore: clean up logging"}
}

func newTestOrchestrator(t *testing.T, platform *fakePlatform, git *gitops.FakeClient) (*Orchestrator, *worklog.Log) {
	t.Helper()
	log := worklog.New(filepath.Join(t.TempDir(), "activity.log"))
	lc := lifecycle.NewController(git, log, lifecycle.Options{
		RepoDir:      t.TempDir(),
		BaseBranch:   "main",
		Remote:       "origin",
		ActivityFile: "ACTIVITY.md",
	})
	o := New(platform, git, lc, log, "origin", 0)
	o.sleep = func(time.Duration) {}
	return o, log
}

func hasRecord(log *worklog.Log, level worklog.Level, substr string) bool {
	for _, r := range log.Records() {
		if r.Level == level && strings.Contains(r.Message, substr) {
			return true
		}
	}
	return false
}

func TestRun_AutoMergeSucceeds(t *testing.T) {
	branch := testBranch()
	git := gitops.NewFakeClient(branch.Name)
	git.Branches["main"] = true
	platform := &fakePlatform{number: 42}
	o, log := newTestOrchestrator(t, platform, git)

	req := o.Run(branch, testActivity())

	if req.Number != 42 {
		t.Errorf("Number = %d, want 42", req.Number)
	}
	if req.State != domain.ReviewMergeAttempted {
		t.Errorf("State = %q, want merge_attempted", req.State)
	}
	if req.AutoMergeQueued {
		t.Error("an immediate merge must not be marked as queued")
	}
	if git.Branch != "main" {
		t.Errorf("final branch = %q, want main", git.Branch)
	}
	if !hasRecord(log, worklog.LevelInfo, "created pull request #42") {
		t.Error("log should record PR creation with parsed number")
	}
}

func TestRun_FallsBackToAutoMergeFlag(t *testing.T) {
	branch := testBranch()
	git := gitops.NewFakeClient(branch.Name)
	git.Branches["main"] = true
	platform := &fakePlatform{
		number:   9,
		mergeErr: fmt.Errorf("required checks pending"),
	}
	o, log := newTestOrchestrator(t, platform, git)

	req := o.Run(branch, testActivity())

	if req.State != domain.ReviewMergeAttempted {
		t.Errorf("State = %q, want merge_attempted", req.State)
	}
	if !req.AutoMergeQueued {
		t.Error("a merge handed off to auto-merge must be marked as queued")
	}
	if git.Branch != "main" {
		t.Errorf("final branch = %q, want main", git.Branch)
	}
	if !hasRecord(log, worklog.LevelInfo, "enabled auto-merge on #9") {
		t.Error("log should record the auto-merge handoff")
	}
	// No local merge happens when the platform queues the merge.
	for _, c := range git.Calls {
		if strings.HasPrefix(c, "merge ") {
			t.Errorf("unexpected git call %q", c)
		}
	}
}

func TestRun_CreationFailureCleansUp(t *testing.T) {
	branch := testBranch()
	git := gitops.NewFakeClient(branch.Name)
	git.Branches["main"] = true
	platform := &fakePlatform{createErr: fmt.Errorf("gh pr create: exit status 1")}
	o, log := newTestOrchestrator(t, platform, git)

	req := o.Run(branch, testActivity())

	if req.State != domain.ReviewAbandoned {
		t.Errorf("State = %q, want abandoned", req.State)
	}
	if git.Branch != "main" {
		t.Errorf("final branch = %q, cleanup must return to base", git.Branch)
	}
	if git.Branches[branch.Name] {
		t.Error("work branch should be deleted during cleanup")
	}
	if !hasRecord(log, worklog.LevelError, "pull request creation failed") {
		t.Error("log should record the creation failure")
	}
	// No merge may be attempted after a failed creation.
	for _, c := range platform.calls {
		if strings.HasPrefix(c, "merge") {
			t.Errorf("unexpected platform call %q", c)
		}
	}
}

func TestRun_FallsBackToManualMerge(t *testing.T) {
	branch := testBranch()
	git := gitops.NewFakeClient(branch.Name)
	git.Branches["main"] = true
	platform := &fakePlatform{
		number:       7,
		mergeErr:     fmt.Errorf("branch protection"),
		autoMergeErr: fmt.Errorf("auto-merge disabled"),
	}
	o, _ := newTestOrchestrator(t, platform, git)

	req := o.Run(branch, testActivity())

	if req.State != domain.ReviewManuallyMerged {
		t.Errorf("State = %q, want manually_merged", req.State)
	}

	var sawMerge, sawPush bool
	for _, c := range git.Calls {
		if c == "merge "+branch.Name {
			sawMerge = true
		}
		if c == "push origin main" {
			sawPush = true
		}
	}
	if !sawMerge || !sawPush {
		t.Errorf("calls = %v, want local merge of work branch and push of base", git.Calls)
	}
	if git.Branch != "main" {
		t.Errorf("final branch = %q, want main", git.Branch)
	}
}

func TestRun_ManualMergeFailureAbandons(t *testing.T) {
	branch := testBranch()
	git := gitops.NewFakeClient(branch.Name)
	git.Branches["main"] = true
	git.Fail("merge")
	platform := &fakePlatform{
		number:       7,
		mergeErr:     fmt.Errorf("required checks pending"),
		autoMergeErr: fmt.Errorf("auto-merge disabled"),
	}
	o, log := newTestOrchestrator(t, platform, git)

	req := o.Run(branch, testActivity())

	if req.State != domain.ReviewAbandoned {
		t.Errorf("State = %q, want abandoned", req.State)
	}
	if git.Branch != "main" {
		t.Errorf("final branch = %q, cleanup must return to base even on failure", git.Branch)
	}
	if !hasRecord(log, worklog.LevelError, "manual merge") {
		t.Error("log should record the manual merge failure")
	}
}

func TestCleanupBranch_Idempotent(t *testing.T) {
	branch := testBranch()
	git := gitops.NewFakeClient(branch.Name)
	git.Branches["main"] = true
	o, log := newTestOrchestrator(t, &fakePlatform{}, git)

	o.CleanupBranch(branch)
	if git.Branches[branch.Name] {
		t.Fatal("first cleanup should delete the branch")
	}

	// Second cleanup: branch already gone, warn but do not error.
	o.CleanupBranch(branch)
	if git.Branch != "main" {
		t.Errorf("branch = %q, want main", git.Branch)
	}
	if !hasRecord(log, worklog.LevelWarning, "may already be gone") {
		t.Error("repeat cleanup should log a warning, not fail")
	}
}

func TestCleanupBranch_StashesDirtyStateBeforeSwitch(t *testing.T) {
	branch := testBranch()
	git := gitops.NewFakeClient(branch.Name)
	git.Branches["main"] = true
	git.DirtyFiles = []string{"leftover.txt"}
	o, _ := newTestOrchestrator(t, &fakePlatform{}, git)

	o.CleanupBranch(branch)

	ops := git.CalledOps()
	stashAt, checkoutAt := -1, -1
	for i, op := range ops {
		if op == "stash-push" && stashAt == -1 {
			stashAt = i
		}
		if op == "checkout" && checkoutAt == -1 {
			checkoutAt = i
		}
	}
	if stashAt == -1 || checkoutAt == -1 || stashAt > checkoutAt {
		t.Errorf("ops = %v, want stash before checkout", ops)
	}
	// The stash saved during cleanup is restored at the end.
	if git.Stash != 0 {
		t.Errorf("Stash = %d, want 0 after restore", git.Stash)
	}
}
