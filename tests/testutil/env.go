package testutil

import (
	"os"
	"testing"
)

// SetupTestEnv sets environment variables for the duration of a test.
//
// The original environment is restored automatically when the test completes.
// Tests that call it must not run in parallel.
//
// Example usage:
//
//	SetupTestEnv(t, map[string]string{
//	    "QB_FIELD": "staging",
//	    "QB_PASS":  "hunter22",
//	})
func SetupTestEnv(t *testing.T, vars map[string]string) {
	t.Helper()

	for key, value := range vars {
		t.Setenv(key, value)
	}
}

// UnsetTestEnv removes variables for the duration of a test, restoring
// any previous values afterwards.
func UnsetTestEnv(t *testing.T, keys ...string) {
	t.Helper()

	for _, key := range keys {
		orig, had := os.LookupEnv(key)
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("Failed to unset environment variable %s: %v", key, err)
		}
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(key, orig)
			}
		})
	}
}

// MapEnv returns a getenv function backed by vars, for code that takes
// an injectable lookup instead of reading the process environment.
func MapEnv(vars map[string]string) func(string) string {
	return func(key string) string {
		return vars[key]
	}
}
