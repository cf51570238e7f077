// Package daemon runs the bot as a long-lived process on hosts without
// a system scheduler: a ticker gated by a cron expression invokes the
// same single-shot runner, and the config file is hot-reloaded on
// change. Runs never overlap in-process; the lock file still guards
// against a second process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// ReloadFunc re-reads configuration and returns the new cron expression
type ReloadFunc func() (string, error)

// Daemon schedules repeated single-shot runs
type Daemon struct {
	configPath string
	run        func() error
	reload     ReloadFunc

	interval time.Duration
	debounce time.Duration
	now      func() time.Time

	mu      sync.Mutex
	sched   cron.Schedule
	lastRun time.Time
	running bool
}

// ParseCron parses a standard five-field cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// New creates a Daemon invoking run whenever cronExpr matches
func New(configPath, cronExpr string, run func() error, reload ReloadFunc) (*Daemon, error) {
	sched, err := ParseCron(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	return &Daemon{
		configPath: configPath,
		run:        run,
		reload:     reload,
		interval:   30 * time.Second,
		debounce:   500 * time.Millisecond,
		now:        time.Now,
		sched:      sched,
	}, nil
}

// SetSchedule swaps the cron expression
func (d *Daemon) SetSchedule(expr string) error {
	sched, err := ParseCron(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	d.mu.Lock()
	d.sched = sched
	d.mu.Unlock()
	return nil
}

// NextRun returns the next time the schedule fires
func (d *Daemon) NextRun() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sched.Next(d.now())
}

// shouldRun reports whether a scheduled slot has passed since the last
// run and no run is currently in flight
func (d *Daemon) shouldRun(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return false
	}

	lastRun := d.lastRun
	if lastRun.IsZero() {
		lastRun = now.Add(-time.Minute)
	}
	return now.After(d.sched.Next(lastRun))
}

func (d *Daemon) markRunning(now time.Time) {
	d.mu.Lock()
	d.running = true
	d.lastRun = now
	d.mu.Unlock()
}

func (d *Daemon) markComplete() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Start blocks, driving scheduled runs and the config watcher until
// ctx is canceled
func (d *Daemon) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return d.tickLoop(ctx) })
	if d.configPath != "" && d.reload != nil {
		g.Go(func() error { return d.watchConfig(ctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (d *Daemon) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := d.now()
			if !d.shouldRun(now) {
				continue
			}
			d.markRunning(now)
			if err := d.run(); err != nil {
				fmt.Printf("scheduled run failed: %v\n", err)
			}
			d.markComplete()
		}
	}
}

// watchConfig reloads the config file on change, debouncing editor
// write bursts
func (d *Daemon) watchConfig(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace files instead of writing in place.
	if err := watcher.Add(filepath.Dir(d.configPath)); err != nil {
		return err
	}

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != d.configPath {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(d.debounce, func() {
				expr, err := d.reload()
				if err != nil {
					fmt.Printf("config reload failed: %v\n", err)
					return
				}
				if err := d.SetSchedule(expr); err != nil {
					fmt.Printf("config reload failed: %v\n", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Printf("config watcher error: %v\n", err)
		}
	}
}
