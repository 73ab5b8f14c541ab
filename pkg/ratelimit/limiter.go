package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter gates outbound page requests.
type Limiter interface {
	// Allow takes a slot if one is free without blocking.
	Allow() bool
	// Wait blocks until a slot is free or ctx is done.
	Wait(ctx context.Context) error
	// Reset forgets all previous requests.
	Reset()
}

// PerMinute returns a sliding window allowing n requests per minute.
func PerMinute(n int) Limiter {
	if n <= 0 {
		return Unlimited{}
	}
	return NewSlidingWindow(n, time.Minute)
}

// Unlimited never blocks.
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}

// SlidingWindow allows maxRequests within any windowSize interval.
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates an empty window.
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.evict(now)
	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}
	return false
}

func (sw *SlidingWindow) Wait(ctx context.Context) error {
	return waitFor(ctx, sw.Allow, func() time.Duration {
		sw.mu.Lock()
		defer sw.mu.Unlock()
		if len(sw.requests) == 0 {
			return 0
		}
		return sw.windowSize - sw.now().Sub(sw.requests[0])
	})
}

func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.requests = sw.requests[:0]
}

// evict drops requests older than the window. Callers hold mu.
func (sw *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.requests) && sw.requests[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		sw.requests = append(sw.requests[:0], sw.requests[i:]...)
	}
}

func waitFor(ctx context.Context, allow func() bool, until func() time.Duration) error {
	for !allow() {
		delay := until()
		if delay <= 0 {
			// Small sleep to prevent busy waiting
			delay = 50 * time.Millisecond
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return ctx.Err()
}
