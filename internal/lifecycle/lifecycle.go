// Package lifecycle drives the work branch through its whole life:
// sync the base branch, branch off, record and commit the simulated
// activity, and move the working tree between branches without ever
// abandoning uncommitted state.
package lifecycle

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/hochfrequenz/activity-bot/internal/activities"
	"github.com/hochfrequenz/activity-bot/internal/domain"
	"github.com/hochfrequenz/activity-bot/internal/gitops"
	"github.com/hochfrequenz/activity-bot/internal/worklog"
)

// Options configures a Controller
type Options struct {
	RepoDir      string
	BaseBranch   string
	Remote       string
	ActivityFile string // path of the tracked log file, relative to RepoDir
	Trusted      bool   // trusted automation: stash restore is a no-op
	StashSettle  time.Duration
}

// Controller owns branch transitions for one run
type Controller struct {
	git  gitops.Client
	log  *worklog.Log
	opts Options

	now    func() time.Time
	sleep  func(time.Duration)
	chance func() bool // one coin flip per optional progress line
}

// NewController creates a Controller over the given git client
func NewController(git gitops.Client, log *worklog.Log, opts Options) *Controller {
	return &Controller{
		git:    git,
		log:    log,
		opts:   opts,
		now:    time.Now,
		sleep:  time.Sleep,
		chance: func() bool { return rand.Intn(2) == 0 },
	}
}

// EnsureBaseSynced checks out the base branch if needed, then makes it
// match the remote exactly, discarding any local divergence. Errors
// here are fatal preconditions for the run and are propagated.
func (c *Controller) EnsureBaseSynced() error {
	cur, err := c.git.CurrentBranch()
	if err != nil {
		return fmt.Errorf("query current branch: %w", err)
	}
	if cur != c.opts.BaseBranch {
		if err := c.SafeSwitchBranch(c.opts.BaseBranch); err != nil {
			return fmt.Errorf("switch to %s: %w", c.opts.BaseBranch, err)
		}
	}

	if err := c.git.Fetch(c.opts.Remote, c.opts.BaseBranch); err != nil {
		return fmt.Errorf("fetch %s: %w", c.opts.BaseBranch, err)
	}
	if err := c.git.ResetHard(c.opts.Remote + "/" + c.opts.BaseBranch); err != nil {
		return fmt.Errorf("reset %s: %w", c.opts.BaseBranch, err)
	}

	c.log.Infof("synced %s with %s", c.opts.BaseBranch, c.opts.Remote)
	return nil
}

// CreateWorkBranch branches off the freshly synced base. The branch
// name combines the activity slug with the current time, so it is
// unique per run.
func (c *Controller) CreateWorkBranch(activity domain.ActivityTemplate) (domain.BranchHandle, error) {
	now := c.now()
	name := fmt.Sprintf("auto/%s-%s", activities.Slug(activity.Label), now.Format("20060102-150405"))

	if err := c.git.CheckoutNew(name); err != nil {
		return domain.BranchHandle{}, err
	}

	c.log.Infof("created branch %s", name)
	return domain.BranchHandle{
		Name:       name,
		BaseBranch: c.opts.BaseBranch,
		CreatedAt:  now,
	}, nil
}

// RecordAndCommit appends the activity line (plus zero or more progress
// lines, each at an independent 50% chance) to the tracked activity
// file, commits and pushes the branch.
func (c *Controller) RecordAndCommit(branch domain.BranchHandle, activity domain.ActivityTemplate) error {
	lines := []string{fmt.Sprintf("- %s %s", branch.CreatedAt.Format("2006-01-02 15:04"), activity.Label)}
	for _, p := range activity.Progress {
		if c.chance() {
			lines = append(lines, "  - "+p)
		}
	}

	if err := c.appendActivityLines(lines); err != nil {
		return fmt.Errorf("write %s: %w", c.opts.ActivityFile, err)
	}

	if err := c.git.Add(c.opts.ActivityFile); err != nil {
		return err
	}
	if err := c.git.Commit(activity.Subject); err != nil {
		return err
	}
	if err := c.git.Push(c.opts.Remote, branch.Name); err != nil {
		return err
	}

	c.log.Infof("committed and pushed %s (%d lines)", branch.Name, len(lines))
	return nil
}

func (c *Controller) appendActivityLines(lines []string) error {
	path := filepath.Join(c.opts.RepoDir, c.opts.ActivityFile)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// SafeSwitchBranch checks out target. When the working tree is dirty
// it stashes everything, untracked files included, and waits briefly
// for the stash to settle before the checkout. The tree is never left
// mid-switch with unhandled changes.
func (c *Controller) SafeSwitchBranch(target string) error {
	files, err := c.git.Status()
	if err != nil {
		return fmt.Errorf("query status: %w", err)
	}

	if len(files) > 0 {
		if err := c.git.StashPushAll("activity-bot: auto-stash before switch"); err != nil {
			return fmt.Errorf("stash before switching to %s: %w", target, err)
		}
		c.log.Infof("stashed %d dirty files before switching to %s", len(files), target)
		c.sleep(c.opts.StashSettle)
	}

	return c.git.Checkout(target)
}

// RestoreStashIfAny pops the top stash entry if one exists. Under
// trusted automation each run starts on a fresh checkout, so there is
// nothing to restore and this is a no-op.
func (c *Controller) RestoreStashIfAny() {
	if c.opts.Trusted {
		return
	}

	n, err := c.git.StashCount()
	if err != nil {
		c.log.Warnf("could not list stash: %v", err)
		return
	}
	if n == 0 {
		return
	}

	if err := c.git.StashPop(); err != nil {
		c.log.Warnf("stash pop failed: %v", err)
		return
	}
	c.log.Infof("restored stashed changes")
}
