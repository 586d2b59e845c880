// Package testing switches the binaries into test mode when imported for
// side effects from a _test.go file.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

const testModeEnv = "CALTRACK_TEST_MODE"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain ensures test mode before running m.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
