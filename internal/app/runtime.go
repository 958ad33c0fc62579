package app

import (
	"os"
	"strconv"
	"sync/atomic"
)

// TestModeEnv keeps cmd/portal and cmd/worker from opening connections.
// internal/testing/guard sets it for test binaries.
const TestModeEnv = "PORTAL_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether the application should skip runtime side effects.
// The environment is read once.
func InTestMode() bool {
	if on := testMode.Load(); on != nil {
		return *on
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads the flag after the environment changed.
func RefreshTestMode() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.Store(&on)
	return on
}
