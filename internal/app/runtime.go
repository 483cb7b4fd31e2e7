package app

import (
	"os"
	"strconv"
	"sync/atomic"
)

// TestModeEnv switches the binaries into a no-side-effect mode for tests.
const TestModeEnv = "VETDESK_TEST_MODE"

var testMode atomic.Pointer[bool]

func readTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}

// InTestMode reports whether cmd binaries should return before touching
// Postgres, Redis or the network. The flag is read once until refreshed.
func InTestMode() bool {
	if v := testMode.Load(); v != nil {
		return *v
	}
	on := readTestMode()
	testMode.CompareAndSwap(nil, &on)
	return *testMode.Load()
}

// RefreshTestMode re-reads the environment.
func RefreshTestMode() {
	on := readTestMode()
	testMode.Store(&on)
}
