package climatesync

import (
	"sync"
	"time"
)

// TickerScheduler is the production Scheduler, backed by time.Ticker.
type TickerScheduler struct{}

// Every invokes fn at the given interval until the returned stop
// function is called. Stop is safe to call more than once.
func (TickerScheduler) Every(interval time.Duration, fn func()) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
