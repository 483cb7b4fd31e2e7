// Package guard switches the process into test mode when imported, so
// binaries exercised from tests skip database and Redis startup.
package guard

import (
	"os"
	"sync"

	"github.com/vetdesk/vetdesk/internal/app"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(app.TestModeEnv) == "" {
			_ = os.Setenv(app.TestModeEnv, "1")
		}
		app.RefreshTestMode()
	})
}
