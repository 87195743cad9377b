package timing

import (
	"context"
	"sync"
	"time"
)

// Every calls job on each tick of interval until ctx is done.
// Ticks are not queued: a slow job delays the next one.
func Every(ctx context.Context, wg *sync.WaitGroup, interval time.Duration, job func(now time.Time)) {
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		wg.Done()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			job(now)
		}
	}
}
