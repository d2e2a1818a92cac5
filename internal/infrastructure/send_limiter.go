package infrastructure

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SendLimiter throttles outbound messages per owner with a token bucket.
// Stale buckets are dropped periodically.
type SendLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*ownerLimiter
	rate     rate.Limit
	burst    int
	done     chan struct{}
}

type ownerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSendLimiter creates a limiter allowing r messages per second with the
// given burst per owner.
func NewSendLimiter(r float64, burst int) *SendLimiter {
	sl := &SendLimiter{
		limiters: make(map[int64]*ownerLimiter),
		rate:     rate.Limit(r),
		burst:    burst,
		done:     make(chan struct{}),
	}
	go sl.cleanup()
	return sl
}

// Stop ends the background cleanup goroutine.
func (sl *SendLimiter) Stop() {
	close(sl.done)
}

// Wait blocks until the owner may send or the context expires.
func (sl *SendLimiter) Wait(ctx context.Context, ownerID int64) error {
	sl.mu.Lock()
	ol, exists := sl.limiters[ownerID]
	if !exists {
		ol = &ownerLimiter{limiter: rate.NewLimiter(sl.rate, sl.burst)}
		sl.limiters[ownerID] = ol
	}
	ol.lastSeen = time.Now()
	sl.mu.Unlock()

	return ol.limiter.Wait(ctx)
}

// cleanup removes buckets idle for more than ten minutes.
func (sl *SendLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-sl.done:
			return
		case <-ticker.C:
			sl.mu.Lock()
			now := time.Now()
			for ownerID, ol := range sl.limiters {
				if now.Sub(ol.lastSeen) > 10*time.Minute {
					delete(sl.limiters, ownerID)
				}
			}
			sl.mu.Unlock()
		}
	}
}
