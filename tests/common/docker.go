// Package common provides shared test infrastructure
package common

import (
	"os"
	"testing"
)

// RequireDocker skips the test unless NAVSYNC_TEST_DOCKER=true. Container
// backed tests need a reachable Docker daemon.
func RequireDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("NAVSYNC_TEST_DOCKER") != "true" {
		t.Skip("set NAVSYNC_TEST_DOCKER=true to run container-backed tests")
	}
}
