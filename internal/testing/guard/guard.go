// Package guard flips the runtime into test mode for any test binary that
// imports it, keeping package init side effects from reaching the network.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ATRIUM_TEST_MODE") == "" {
			_ = os.Setenv("ATRIUM_TEST_MODE", "1")
		}
	})
}
