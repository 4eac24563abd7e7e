package main

import (
	"context"
	"log"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// ControlRateLimiter bounds the number of control (text) messages a
// single connection may submit per second (§7 Resource-overflow). A
// rate of 0 disables the limit entirely.
type ControlRateLimiter struct {
	limiter *limiter.Limiter
	enabled bool
}

// NewControlRateLimiter builds a limiter allowing perSecond control
// messages per connection-id per second.
func NewControlRateLimiter(perSecond int) *ControlRateLimiter {
	if perSecond <= 0 {
		return &ControlRateLimiter{enabled: false}
	}
	rate := limiter.Rate{Period: ratePeriod, Limit: int64(perSecond)}
	store := memory.NewStore()
	return &ControlRateLimiter{
		limiter: limiter.New(store, rate),
		enabled: true,
	}
}

// Allow reports whether connID may send another control message right
// now, consuming one unit of its budget if so.
func (c *ControlRateLimiter) Allow(connID string) bool {
	if !c.enabled {
		return true
	}
	res, err := c.limiter.Get(context.Background(), connID)
	if err != nil {
		// Fail open: a limiter-store error must never block legitimate
		// signaling/video traffic (§7 — no hot-path failures propagate).
		log.Printf("[router] rate limiter error: %v", err)
		return true
	}
	return !res.Reached
}
