// Package activities holds the catalog of simulated engineering
// activities the bot commits against. A YAML file can override the
// built-in catalog.
package activities

import (
	"fmt"
	"os"
	"strings"

	"github.com/hochfrequenz/activity-bot/internal/domain"
	"gopkg.in/yaml.v3"
)

// Catalog is a non-empty set of activity templates
type Catalog struct {
	Activities []domain.ActivityTemplate
}

type yamlCatalog struct {
	Activities []yamlActivity `yaml:"activities"`
}

type yamlActivity struct {
	Label    string   `yaml:"label"`
	Subject  string   `yaml:"subject"`
	Progress []string `yaml:"progress"`
}

// Load reads a catalog from a YAML file. An empty path or missing file
// yields the built-in default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultCatalog(), nil
		}
		return nil, err
	}

	var raw yamlCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse activity catalog: %w", err)
	}
	if len(raw.Activities) == 0 {
		return nil, fmt.Errorf("activity catalog %s defines no activities", path)
	}

	c := &Catalog{}
	for _, a := range raw.Activities {
		if a.Label == "" {
			return nil, fmt.Errorf("activity catalog %s: entry without label", path)
		}
		subject := a.Subject
		if subject == "" {
			subject = "chore: " + a.Label
		}
		c.Activities = append(c.Activities, domain.ActivityTemplate{
			Label:    a.Label,
			Subject:  subject,
			Progress: a.Progress,
		})
	}
	return c, nil
}

// Pick selects one activity using the supplied randomness source
func (c *Catalog) Pick(intn func(n int) int) domain.ActivityTemplate {
	return c.Activities[intn(len(c.Activities))]
}

// Slug converts an activity label into a branch-name-safe component
func Slug(label string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// DefaultCatalog returns the built-in activity set. Each template
// carries at most three progress lines.
func DefaultCatalog() *Catalog {
	return &Catalog{Activities: []domain.ActivityTemplate{
		{
			Label:   "tune cache eviction",
			Subject: "perf: tune cache eviction thresholds",
			Progress: []string{
				"profiled hit rates under load",
				"adjusted eviction window",
				"verified steady-state memory",
			},
		},
		{
			Label:   "improve error messages",
			Subject: "chore: improve error messages",
			Progress: []string{
				"reviewed user-facing failures",
				"added context to wrapped errors",
			},
		},
		{
			Label:   "refactor config loader",
			Subject: "refactor: simplify config loading",
			Progress: []string{
				"collapsed duplicate path expansion",
				"tightened validation",
				"updated defaults",
			},
		},
		{
			Label:   "extend test coverage",
			Subject: "test: extend coverage of edge cases",
			Progress: []string{
				"added table cases for rollover",
				"covered failure paths",
			},
		},
		{
			Label:   "update dependencies",
			Subject: "chore: bump dependencies",
			Progress: []string{
				"reviewed changelogs",
				"ran the suite against new versions",
			},
		},
		{
			Label:   "polish cli help text",
			Subject: "docs: polish CLI help text",
			Progress: []string{
				"reworded flag descriptions",
			},
		},
		{
			Label:   "simplify retry backoff",
			Subject: "refactor: simplify retry backoff",
			Progress: []string{
				"replaced ad-hoc sleeps",
				"bounded worst-case delay",
				"documented the schedule",
			},
		},
		{
			Label:   "document internal apis",
			Subject: "docs: document internal APIs",
			Progress: []string{
				"wrote package overviews",
				"clarified ownership of state files",
			},
		},
		{
			Label:   "cleanup logging",
			Subject: "chore: clean up logging",
			Progress: []string{
				"dropped noisy debug lines",
				"unified severity usage",
			},
		},
		{
			Label:   "harden input validation",
			Subject: "fix: harden input validation",
			Progress: []string{
				"rejected malformed ids early",
				"added bounds checks",
				"covered with regression tests",
			},
		},
	}}
}
