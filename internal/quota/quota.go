// Package quota decides whether the bot should act "now" by tracking a
// randomized per-day commit target and the count consumed so far.
package quota

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/hochfrequenz/activity-bot/internal/worklog"
	"github.com/pelletier/go-toml/v2"
)

// State is the persisted per-day progress record
type State struct {
	Date     string `toml:"date"`
	Consumed int    `toml:"consumed"`
	Target   int    `toml:"target"`
}

// Next applies one gating decision to a loaded state. When the state's
// date differs from today it is reset with the freshly drawn target.
// act reports whether the caller should act, newDay whether a reset
// happened. On act the consumed count is already incremented in out:
// the quota is spent before the action runs, so a failed push or PR
// still counts against the day (throttle-first, not transactional).
func Next(s State, today string, target int) (out State, act bool, newDay bool) {
	out = s
	if out.Date != today {
		out = State{Date: today, Consumed: 0, Target: target}
		newDay = true
	}
	act = out.Consumed < out.Target
	if act {
		out.Consumed++
	}
	return out, act, newDay
}

// Tracker persists State across runs and draws daily targets
type Tracker struct {
	path      string
	minTarget int
	maxTarget int
	loc       *time.Location
	log       *worklog.Log

	now  func() time.Time
	intn func(n int) int
}

// NewTracker creates a Tracker persisting to path. Targets are drawn
// uniformly from [minTarget, maxTarget]; days roll over in loc.
func NewTracker(path string, minTarget, maxTarget int, loc *time.Location, log *worklog.Log) *Tracker {
	return &Tracker{
		path:      path,
		minTarget: minTarget,
		maxTarget: maxTarget,
		loc:       loc,
		log:       log,
		now:       time.Now,
		intn:      rand.Intn,
	}
}

// ShouldActNow loads the state, applies one gating decision and
// persists the result. The consumed count increments on every true
// return whether or not the subsequent action completes.
func (t *Tracker) ShouldActNow() (bool, error) {
	s, err := t.Load()
	if err != nil {
		return false, err
	}

	today := t.now().In(t.loc).Format("2006-01-02")
	target := t.minTarget + t.intn(t.maxTarget-t.minTarget+1)

	s, act, newDay := Next(s, today, target)
	if newDay {
		t.log.Infof("NEW DAY %s: target %d commits", s.Date, s.Target)
	}

	if err := t.store(s); err != nil {
		return false, err
	}
	return act, nil
}

// Load reads the persisted state. A missing file yields the zero
// State, which Next treats as a day rollover.
func (t *Tracker) Load() (State, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, err
	}

	var s State
	if err := toml.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("parse quota state: %w", err)
	}
	return s, nil
}

func (t *Tracker) store(s State) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return err
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(t.path, data, 0644)
}
