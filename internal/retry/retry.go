// Package retry wraps github.com/sethvargo/go-retry's exponential
// backoff for the embedding job queue's retryable-failure path (spec
// §4.7: transport errors, 5xx, and 429 honoring a provided delay get
// exponential backoff up to a configurable maximum attempt count; any
// other failure is terminal). The library already sat in go.mod as an
// indirect dependency pulled in by the migration tooling; this promotes
// it to a direct one instead of hand-rolling the same backoff math.
package retry

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// ExponentialDelay returns the backoff interval for the given attempt
// number (1-indexed) starting from base and doubling each attempt,
// using go-retry's own stepping rather than reimplementing it. The
// embedding service's jobs are retried asynchronously by re-enqueueing
// onto the worker pool rather than by blocking inside retry.Do, so only
// the delay computation is reused here, not the retry loop itself.
func ExponentialDelay(base time.Duration, attempt int) time.Duration {
	b, err := retry.NewExponential(base)
	if err != nil || attempt < 1 {
		return base
	}
	var delay time.Duration
	for i := 0; i < attempt; i++ {
		next, stop := b.Next()
		if stop {
			break
		}
		delay = next
	}
	return delay
}

// Retryable marks err as eligible for another attempt, for callers that
// do use retry.Do directly.
func Retryable(err error) error {
	return retry.RetryableError(err)
}
