// Package retry re-runs operations that fail for transient reasons, such as
// a product grid that has not finished rendering or a database that briefly
// refuses connections.
//
// Errors typed by pricecrawl/pkg/errors are retried only when their type is
// retryable; context errors never are. Untyped errors are retried.
//
//	cfg := retry.Fixed(ctx, 3, 2*time.Second, log)
//	recs, err := retry.DoWithResult(func() ([]record.Record, error) {
//		return driver.ScrapeLeaf(ctx)
//	}, cfg)
//
// MaxAttempts counts the first call, so Fixed(ctx, 3, ...) makes at most four.
package retry
