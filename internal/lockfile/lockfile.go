// Package lockfile provides host-local mutual exclusion between
// overlapping bot invocations via a timestamped marker file.
package lockfile

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultStaleAfter is the age past which a lock record is considered
// abandoned by a crashed run and may be discarded by a new acquirer.
const DefaultStaleAfter = 5 * time.Minute

// Lock guards a single run against concurrent invocations on one host.
// It is not a distributed lock; the marker file is only visible locally.
type Lock struct {
	path       string
	staleAfter time.Duration
	now        func() time.Time
}

// New creates a Lock backed by the marker file at path
func New(path string) *Lock {
	return &Lock{
		path:       path,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// TryAcquire attempts to take the lock. It returns true only when a
// fresh record was written; any I/O error counts as "could not acquire"
// so a run never proceeds without a confirmed lock.
func (l *Lock) TryAcquire() bool {
	data, err := os.ReadFile(l.path)
	switch {
	case err == nil:
		held, parseErr := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
		if parseErr == nil && l.now().Sub(held) < l.staleAfter {
			return false
		}
		// Stale or unreadable record: discard it and fall through.
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return false
		}
	case !os.IsNotExist(err):
		return false
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return false
	}
	defer f.Close()
	if _, err := f.WriteString(l.now().Format(time.RFC3339) + "\n"); err != nil {
		os.Remove(l.path)
		return false
	}
	return true
}

// Release deletes the lock record. Idempotent.
func (l *Lock) Release() {
	os.Remove(l.path)
}
