package config

import "os"

// tokenVars are the environment variables accepted for platform auth,
// checked in order.
var tokenVars = []string{"GITHUB_TOKEN", "GH_TOKEN"}

// Token returns the review-platform auth token from the environment.
// Its absence is a fatal precondition for any run.
func Token() (string, bool) {
	for _, name := range tokenVars {
		if v := os.Getenv(name); v != "" {
			return v, true
		}
	}
	return "", false
}

// TrustedAutomation reports whether the process runs under a scheduler
// that already guarantees single-run isolation on a fresh checkout.
// In that case the lock file is bypassed and stash restore is a no-op.
func TrustedAutomation() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true" || os.Getenv("CI") == "true"
}
