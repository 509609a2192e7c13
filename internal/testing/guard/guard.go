package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("VISADESK_TEST_MODE") == "" {
			_ = os.Setenv("VISADESK_TEST_MODE", "1")
		}
	})
}
