package onion

import (
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------.

type (
	circuitBreakerConfig struct {
		clock               Clock
		failureThreshold    int
		recoveryTimeout     time.Duration
		halfOpenMaxAttempts int
	}

	// CircuitBreakerOption configures a [CircuitBreaker].
	CircuitBreakerOption func(*circuitBreakerConfig)

	// CircuitBreaker fails calls fast while the downstream keeps failing.
	// One breaker is meant to be shared by every call through a client, so
	// its state is kept in atomics.
	//
	// Pattern: Circuit Breaker; fast-fails calls to an unhealthy
	// downstream; auto-recovers via half-open probes after a timeout.
	CircuitBreaker struct {
		cfg circuitBreakerConfig

		state             atomic.Uint32 // stateClosed | stateOpen | stateHalfOpen
		failureCount      atomic.Int64
		lastFailureNano   atomic.Int64
		halfOpenSuccesses atomic.Int64
	}
)

// Circuit breaker states (stored in atomic.Uint32).
const (
	stateClosed   uint32 = 0
	stateOpen     uint32 = 1
	stateHalfOpen uint32 = 2
)

// FailureThreshold sets the number of consecutive failures before opening.
func FailureThreshold(n int) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.failureThreshold = n
	}
}

// RecoveryTimeout sets how long the breaker stays open before letting a
// probe through.
func RecoveryTimeout(d time.Duration) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.recoveryTimeout = d
	}
}

// HalfOpenMaxAttempts sets the number of successful probes needed to close
// again.
func HalfOpenMaxAttempts(n int) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.halfOpenMaxAttempts = n
	}
}

// BreakerClock sets the clock used to measure the recovery timeout.
func BreakerClock(c Clock) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.clock = c
	}
}

// NewCircuitBreaker creates a closed breaker. Defaults: 5 failures, 30s
// recovery, 1 probe.
func NewCircuitBreaker(opts ...CircuitBreakerOption) *CircuitBreaker {
	cfg := circuitBreakerConfig{
		failureThreshold:    5,
		recoveryTimeout:     30 * time.Second,
		halfOpenMaxAttempts: 1,
	}
	for _, o := range opts {
		o(&cfg)
	}

	cfg.clock = clockOrDefault(cfg.clock)

	return &CircuitBreaker{cfg: cfg}
}

// Handler returns the [Handler] guarding downstream with this breaker. Any
// downstream error counts as a failure; register it outside [ThrowErrors]
// for HTTP error statuses to count too.
func (cb *CircuitBreaker) Handler() Handler {
	return HandlerFunc(func(c *Context, next Next) error {
		if err := cb.allow(c.hooks); err != nil {
			c.Err = err
			return err
		}

		if err := next(); err != nil {
			cb.recordFailure(c.hooks)
			return err
		}

		cb.recordSuccess(c.hooks)

		return nil
	})
}

// State returns "closed", "open" or "half_open".
func (cb *CircuitBreaker) State() string {
	switch cb.state.Load() {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

func (cb *CircuitBreaker) allow(hooks *Hooks) error {
	if cb.state.Load() != stateOpen {
		return nil
	}

	last := time.Unix(0, cb.lastFailureNano.Load())
	if cb.cfg.clock.Now().Sub(last) <= cb.cfg.recoveryTimeout {
		return ErrCircuitOpen
	}

	// Losing the CAS means another call already moved to half-open.
	if cb.state.CompareAndSwap(stateOpen, stateHalfOpen) {
		cb.halfOpenSuccesses.Store(0)
		hooks.emitCircuitHalfOpen()
	}

	return nil
}

func (cb *CircuitBreaker) recordSuccess(hooks *Hooks) {
	switch cb.state.Load() {
	case stateClosed:
		cb.failureCount.Store(0)

	case stateHalfOpen:
		if cb.halfOpenSuccesses.Add(1) < int64(cb.cfg.halfOpenMaxAttempts) {
			return
		}

		if cb.state.CompareAndSwap(stateHalfOpen, stateClosed) {
			cb.failureCount.Store(0)
			cb.halfOpenSuccesses.Store(0)
			hooks.emitCircuitClose()
		}
	}
}

func (cb *CircuitBreaker) recordFailure(hooks *Hooks) {
	cb.lastFailureNano.Store(cb.cfg.clock.Now().UnixNano())

	switch cb.state.Load() {
	case stateClosed:
		if cb.failureCount.Add(1) < int64(cb.cfg.failureThreshold) {
			return
		}

		if cb.state.CompareAndSwap(stateClosed, stateOpen) {
			hooks.emitCircuitOpen()
		}

	case stateHalfOpen:
		if cb.state.CompareAndSwap(stateHalfOpen, stateOpen) {
			cb.halfOpenSuccesses.Store(0)
			hooks.emitCircuitOpen()
		}
	}
}
