// Package ratelimit provides optional client-side pacing for catalog
// requests.
//
// Pacing is off unless requests_per_minute is set. When enabled, every
// request takes a token from a TokenBucket before it is sent:
//
//	limiter := ratelimit.PerMinute(cfg.Pipeline.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // ctx ended while waiting
//	}
//
// Server-side 429 handling lives in the retry policy, not here.
package ratelimit
