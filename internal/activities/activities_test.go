package activities

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"tune cache eviction", "tune-cache-eviction"},
		{"Improve Error Messages!", "improve-error-messages"},
		{"a  b", "a-b"},
		{"refactor: config/loader", "refactor-config-loader"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	if len(c.Activities) == 0 {
		t.Fatal("default catalog is empty")
	}
	for _, a := range c.Activities {
		if a.Label == "" || a.Subject == "" {
			t.Errorf("activity %+v missing label or subject", a)
		}
		if len(a.Progress) > 3 {
			t.Errorf("activity %q has %d progress lines, want <= 3", a.Label, len(a.Progress))
		}
		if Slug(a.Label) == "" {
			t.Errorf("activity %q slugs to empty", a.Label)
		}
	}
}

func TestPick_Deterministic(t *testing.T) {
	c := DefaultCatalog()

	a := c.Pick(func(n int) int { return 0 })
	if a.Label != c.Activities[0].Label {
		t.Errorf("Pick(0) = %q, want %q", a.Label, c.Activities[0].Label)
	}

	last := len(c.Activities) - 1
	a = c.Pick(func(n int) int { return n - 1 })
	if a.Label != c.Activities[last].Label {
		t.Errorf("Pick(n-1) = %q, want %q", a.Label, c.Activities[last].Label)
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
activities:
  - label: rework indexing
    subject: "perf: rework indexing"
    progress:
      - measured lookup latency
  - label: tidy docs
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Activities) != 2 {
		t.Fatalf("Activities len = %d, want 2", len(c.Activities))
	}
	if c.Activities[0].Subject != "perf: rework indexing" {
		t.Errorf("Subject = %q", c.Activities[0].Subject)
	}
	// Missing subject falls back to a chore prefix
	if c.Activities[1].Subject != "chore: tidy docs" {
		t.Errorf("fallback Subject = %q, want chore: tidy docs", c.Activities[1].Subject)
	}
}

func TestLoad_MissingFileUsesDefault(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Activities) != len(DefaultCatalog().Activities) {
		t.Error("missing file should yield the default catalog")
	}
}

func TestLoad_EmptyCatalogRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("activities: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load should reject an empty catalog")
	}
}
