package onion

import "time"

// Clock abstracts the time source used for retry backoff and circuit breaker
// recovery, so tests can drive both deterministically. [RealClock] is the
// default.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// NewTimer creates a [Timer] that fires once after d.
	NewTimer(d time.Duration) Timer
}

// Timer is the subset of [time.Timer] the pipeline relies on.
type Timer interface {
	// C returns the channel the firing time is delivered on.
	C() <-chan time.Time
	// Stop prevents the timer from firing and reports whether it was still
	// pending.
	Stop() bool
}

// RealClock is a [Clock] backed by the [time] package. It holds no state.
type RealClock struct{}

// Now returns [time.Now].
func (RealClock) Now() time.Time { return time.Now() }

// NewTimer wraps [time.NewTimer].
func (RealClock) NewTimer(d time.Duration) Timer {
	return realTimer{inner: time.NewTimer(d)}
}

type realTimer struct {
	inner *time.Timer
}

func (t realTimer) C() <-chan time.Time { return t.inner.C }
func (t realTimer) Stop() bool          { return t.inner.Stop() }

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return RealClock{}
	}

	return c
}
