// Package guard flips the portal into test mode as soon as it is imported.
package guard

import (
	"os"
	"sync"
)

// EnvTestMode mirrors app.TestModeEnv.
const EnvTestMode = "PORTAL_TEST_MODE"

var once sync.Once

// Enable sets the test mode flag unless the caller already chose a value.
func Enable() {
	once.Do(func() {
		if os.Getenv(EnvTestMode) == "" {
			_ = os.Setenv(EnvTestMode, "1")
		}
	})
}

func init() {
	Enable()
}
