// Package testing switches binaries into test mode. Test packages that build
// or call a main function import it for its side effect.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

const testModeEnv = "QUOTEWIZARD_TEST_MODE"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(testModeEnv, "1")
		if os.Getenv("LOG_LEVEL") == "" {
			_ = os.Setenv("LOG_LEVEL", "warn")
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be delegated to from a package's own TestMain.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
