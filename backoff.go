package onion

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy decides how long [Retry] waits before the next attempt.
//
// Pattern: Strategy; swap delay algorithms without touching the retry loop.
type BackoffStrategy interface {
	// Delay returns the wait after the given failed attempt (1-based, so
	// Delay(1) is the pause between the first and second attempts).
	Delay(attempt int) time.Duration
}

// BackoffFunc adapts a plain function into a [BackoffStrategy].
type BackoffFunc func(attempt int) time.Duration

// Delay calls f(attempt).
func (f BackoffFunc) Delay(attempt int) time.Duration { return f(attempt) }

// ConstantBackoff waits d after every attempt.
func ConstantBackoff(d time.Duration) BackoffStrategy {
	return BackoffFunc(func(int) time.Duration { return d })
}

// LinearBackoff waits step, 2*step, 3*step, ...
func LinearBackoff(step time.Duration) BackoffStrategy {
	return BackoffFunc(func(attempt int) time.Duration {
		return step * time.Duration(max(attempt, 1))
	})
}

// ExponentialBackoff waits base, 2*base, 4*base, ...
func ExponentialBackoff(base time.Duration) BackoffStrategy {
	return BackoffFunc(func(attempt int) time.Duration {
		return exponential(base, attempt)
	})
}

// ExponentialJitterBackoff waits a uniformly random duration in
// [0, base*2^(attempt-1)], spreading retries from many callers over time.
func ExponentialJitterBackoff(base time.Duration) BackoffStrategy {
	return BackoffFunc(func(attempt int) time.Duration {
		ceiling := int64(exponential(base, attempt))
		if ceiling <= 0 {
			return 0
		}

		return time.Duration(rand.Int64N(ceiling + 1))
	})
}

// exponential returns base*2^(attempt-1), saturating instead of overflowing.
func exponential(base time.Duration, attempt int) time.Duration {
	f := float64(base) * math.Pow(2, float64(max(attempt, 1)-1))
	if f >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(f)
}
