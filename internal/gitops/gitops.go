// Package gitops is the version-control capability consumed by the
// branch lifecycle. The bot uses the git executable rather than a
// library binding so it behaves identically to a developer's checkout.
package gitops

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Client is the narrow set of version-control operations the bot needs
type Client interface {
	CurrentBranch() (string, error)
	Status() ([]string, error)
	Fetch(remote, branch string) error
	ResetHard(ref string) error
	Checkout(branch string) error
	CheckoutNew(branch string) error
	StashPushAll(message string) error
	StashPop() error
	StashCount() (int, error)
	Add(path string) error
	Commit(message string) error
	Push(remote, branch string) error
	Merge(branch string) error
	DeleteBranch(branch string) error
	DeleteRemoteBranch(remote, branch string) error
}

// ExecClient runs git in a fixed repository directory
type ExecClient struct {
	dir string
}

// NewExecClient creates a client operating on the repository at dir
func NewExecClient(dir string) *ExecClient {
	return &ExecClient{dir: dir}
}

func (c *ExecClient) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = c.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %s: %w", args[0], bytes.TrimSpace(out), err)
	}
	return string(out), nil
}

// CurrentBranch returns the name of the checked-out branch
func (c *ExecClient) CurrentBranch() (string, error) {
	out, err := c.run("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Status returns the paths reported dirty by git status, staged,
// unstaged and untracked alike
func (c *ExecClient) Status() ([]string, error) {
	out, err := c.run("status", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseStatus(out), nil
}

func parseStatus(out string) []string {
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) > 3 {
			files = append(files, strings.TrimSpace(line[3:]))
		}
	}
	return files
}

// Fetch updates the remote-tracking ref for branch
func (c *ExecClient) Fetch(remote, branch string) error {
	_, err := c.run("fetch", remote, branch)
	return err
}

// ResetHard moves the current branch to ref, discarding local changes
func (c *ExecClient) ResetHard(ref string) error {
	_, err := c.run("reset", "--hard", ref)
	return err
}

// Checkout switches to an existing branch
func (c *ExecClient) Checkout(branch string) error {
	_, err := c.run("checkout", branch)
	return err
}

// CheckoutNew creates a branch from the current HEAD and switches to it
func (c *ExecClient) CheckoutNew(branch string) error {
	_, err := c.run("checkout", "-b", branch)
	return err
}

// StashPushAll stashes all working-tree changes including untracked files
func (c *ExecClient) StashPushAll(message string) error {
	_, err := c.run("stash", "push", "--include-untracked", "-m", message)
	return err
}

// StashPop reapplies and drops the top stash entry
func (c *ExecClient) StashPop() error {
	_, err := c.run("stash", "pop")
	return err
}

// StashCount returns the number of stash entries
func (c *ExecClient) StashCount() (int, error) {
	out, err := c.run("stash", "list")
	if err != nil {
		return 0, err
	}
	return countLines(out), nil
}

func countLines(out string) int {
	count := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

// Add stages a path
func (c *ExecClient) Add(path string) error {
	_, err := c.run("add", path)
	return err
}

// Commit records the staged changes
func (c *ExecClient) Commit(message string) error {
	_, err := c.run("commit", "-m", message)
	return err
}

// Push uploads branch to remote, creating it there if absent. Branch
// names carry a time component so an existing remote branch of the
// same name cannot belong to another run.
func (c *ExecClient) Push(remote, branch string) error {
	_, err := c.run("push", "-u", remote, branch)
	return err
}

// Merge merges branch into the current branch
func (c *ExecClient) Merge(branch string) error {
	_, err := c.run("merge", branch, "--no-edit")
	return err
}

// DeleteBranch force-deletes a local branch
func (c *ExecClient) DeleteBranch(branch string) error {
	_, err := c.run("branch", "-D", branch)
	return err
}

// DeleteRemoteBranch deletes a branch on the remote
func (c *ExecClient) DeleteRemoteBranch(remote, branch string) error {
	_, err := c.run("push", remote, "--delete", branch)
	return err
}
