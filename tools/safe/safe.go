package safe

import (
	"PulseIM/logger"
)

// Go starts a goroutine that recovers from panic, so a single connection's
// failure never takes the process down.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
