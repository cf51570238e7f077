// Package review is the review-platform capability: pull request
// creation and merging through the gh CLI.
package review

import (
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Platform is the set of review-platform operations the bot consumes
type Platform interface {
	CreateRequest(title, body, base, head string) (int, error)
	MergeRequest(number int) error
	EnableAutoMerge(number int) error
}

// GHClient drives pull requests via the gh CLI
type GHClient struct {
	dir string
}

// NewGHClient creates a client running gh inside the repository at dir
func NewGHClient(dir string) *GHClient {
	return &GHClient{dir: dir}
}

func (c *GHClient) run(args ...string) (string, error) {
	cmd := exec.Command("gh", args...)
	cmd.Dir = c.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("gh %s: %s: %w", strings.Join(args[:2], " "), bytes.TrimSpace(out), err)
	}
	return string(out), nil
}

// CreateRequest opens a pull request and returns its parsed number
func (c *GHClient) CreateRequest(title, body, base, head string) (int, error) {
	out, err := c.run("pr", "create",
		"--title", title,
		"--body", body,
		"--base", base,
		"--head", head,
	)
	if err != nil {
		return 0, err
	}

	num := extractRequestNumber(out)
	if num == 0 {
		return 0, fmt.Errorf("gh pr create: no request number in output %q", strings.TrimSpace(out))
	}
	return num, nil
}

// MergeRequest merges the pull request immediately and deletes its branch
func (c *GHClient) MergeRequest(number int) error {
	_, err := c.run("pr", "merge", strconv.Itoa(number),
		"--merge",
		"--delete-branch",
	)
	return err
}

// EnableAutoMerge flags the pull request to merge once checks pass
func (c *GHClient) EnableAutoMerge(number int) error {
	_, err := c.run("pr", "merge", strconv.Itoa(number),
		"--auto",
		"--merge",
	)
	return err
}

var requestNumberPattern = regexp.MustCompile(`#(\d+)`)

// extractRequestNumber finds the request id in command output, either
// as #123 or as the trailing path segment of a pull request URL.
func extractRequestNumber(out string) int {
	if m := requestNumberPattern.FindStringSubmatch(out); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}

	// gh pr create prints the PR URL: .../pull/123
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Split(strings.TrimSpace(line), "/")
		if len(parts) < 2 {
			continue
		}
		if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
