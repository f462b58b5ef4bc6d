package notifier

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter is a two level token bucket: one bucket shared by every
// destination plus one bucket per destination. Telegram enforces both a
// global bot limit and a per-chat limit.
type RateLimiter struct {
	global *rate.Limiter

	perDest      rate.Limit
	perDestBurst int

	mu    sync.Mutex
	chats map[string]*rate.Limiter
}

// NewRateLimiter creates a limiter allowing globalPerSecond requests overall
// (with burst globalBurst) and perDestPerSecond requests to any single
// destination (with burst perDestBurst).
//
// Example:
//
//	limiter := NewRateLimiter(25, 5, 1, 3) // 25 req/s overall, 1 req/s per chat
func NewRateLimiter(globalPerSecond float64, globalBurst int, perDestPerSecond float64, perDestBurst int) *RateLimiter {
	return &RateLimiter{
		global:       rate.NewLimiter(rate.Limit(globalPerSecond), globalBurst),
		perDest:      rate.Limit(perDestPerSecond),
		perDestBurst: perDestBurst,
		chats:        make(map[string]*rate.Limiter),
	}
}

// Wait blocks until both the destination bucket and the global bucket
// hold a token, or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, destination string) error {
	if err := r.forDestination(destination).Wait(ctx); err != nil {
		return err
	}
	return r.global.Wait(ctx)
}

func (r *RateLimiter) forDestination(destination string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.chats[destination]
	if !ok {
		l = rate.NewLimiter(r.perDest, r.perDestBurst)
		r.chats[destination] = l
	}
	return l
}
