// Package retry provides backoff strategies and a context-aware Wait.
//
// The fetcher uses ExponentialBackoff for transient faults: the n-th
// consecutive transient failure (counting from 0) sleeps BaseDelay * 2^n.
// Rate-limit waits come from the server and bypass the strategy.
//
//	backoff := retry.NewExponentialBackoff(time.Second, 0)
//	if err := retry.Wait(ctx, backoff.NextDelay(n)); err != nil {
//		return err // cancelled
//	}
package retry
