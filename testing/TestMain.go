package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	"github.com/sunlease/portal/internal/testing/guard"
)

var once sync.Once

// testSecrets keeps app.LoadConfig usable in packages that build a router.
var testSecrets = map[string]string{
	"SESSION_SECRET": "test-session-secret",
	"CSRF_SECRET":    "test-csrf-secret",
	"JWT_SECRET":     "test-jwt-secret",
}

func ensureTestMode() {
	once.Do(func() {
		guard.Enable()
		for key, value := range testSecrets {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
