// Package ratelimit paces page loads so a crawl does not hammer the store's site.
//
// Both limiters satisfy Limiter. Wait blocks until a request may proceed or
// the context ends:
//
//	limiter := ratelimit.PerMinute(30)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
//	// load the page
//
// A non-positive rate yields Unlimited, which never blocks.
package ratelimit
