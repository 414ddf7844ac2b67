package onion

import "time"

// Pattern: Factory Function; each preset produces a ready-made handler stack
// for a common use case. Every call returns fresh handlers, so clients built
// from the same preset do not share a circuit breaker or bulkhead.

// StandardStack returns handlers for a typical HTTP client, outermost first:
// a 5s overall timeout, a circuit breaker opening after 5 failures for 30s,
// up to 3 attempts on transient failures with 100ms exponential backoff, and
// error escalation.
func StandardStack() []Handler {
	return []Handler{
		Timeout(5 * time.Second),
		NewCircuitBreaker(
			FailureThreshold(5),
			RecoveryTimeout(30*time.Second),
		).Handler(),
		Retry(RetryTransient(3), WithBackoff(ExponentialBackoff(100*time.Millisecond))),
		ThrowErrors(),
	}
}

// AggressiveStack returns handlers for latency-sensitive clients: a 2s
// overall timeout, a circuit breaker opening after 3 failures for 15s, a
// bulkhead of 20 concurrent calls, up to 5 attempts with 50ms exponential
// backoff capped at 5s, and error escalation.
func AggressiveStack() []Handler {
	return []Handler{
		Timeout(2 * time.Second),
		NewCircuitBreaker(
			FailureThreshold(3),
			RecoveryTimeout(15*time.Second),
		).Handler(),
		Bulkhead(20),
		Retry(
			RetryTransient(5),
			WithBackoff(ExponentialBackoff(50*time.Millisecond)),
			MaxDelay(5*time.Second),
		),
		ThrowErrors(),
	}
}
