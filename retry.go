package onion

import (
	"time"

	"github.com/rs/zerolog"
)

// Decision reports whether [Retry] should run the downstream chain again
// after attempt (1-based) failed with err. It may block, for example to
// refresh a credential, and may mutate c.Request before returning true.
type Decision func(c *Context, attempt int, err error) bool

// defaultWarnAfter is the attempt count at which a still-retrying loop is
// reported as suspicious.
const defaultWarnAfter = 10

// retryConfig holds the optional configuration for retry behavior.
type retryConfig struct {
	strategy    BackoffStrategy // nil means retry immediately
	clock       Clock
	maxDelay    time.Duration // 0 means no cap
	maxAttempts int           // 0 means no ceiling
	warnAfter   int           // 0 disables the warning
}

// RetryOption configures [Retry].
type RetryOption func(*retryConfig)

// WithBackoff waits according to s between attempts.
func WithBackoff(s BackoffStrategy) RetryOption {
	return func(cfg *retryConfig) {
		cfg.strategy = s
	}
}

// MaxDelay caps each backoff delay.
func MaxDelay(d time.Duration) RetryOption {
	return func(cfg *retryConfig) {
		cfg.maxDelay = d
	}
}

// MaxAttempts stops retrying after n attempts whatever the decision says.
// n <= 0 leaves the loop bounded only by the decision.
func MaxAttempts(n int) RetryOption {
	return func(cfg *retryConfig) {
		cfg.maxAttempts = n
	}
}

// WarnAfter logs a warning once the loop reaches attempt n. n <= 0 disables
// it.
func WarnAfter(n int) RetryOption {
	return func(cfg *retryConfig) {
		cfg.warnAfter = n
	}
}

// WithClock sets the clock used for backoff timers.
func WithClock(c Clock) RetryOption {
	return func(cfg *retryConfig) {
		cfg.clock = c
	}
}

// Pattern: Retry; re-runs the downstream chain while a caller-supplied
// decision allows it. The decision sees the Context and may repair the
// request between attempts.

// Retry returns a [Handler] that calls next until it succeeds or decide
// returns false, in which case the error of the last attempt is returned
// unchanged. Bounding the number of attempts is decide's job unless
// [MaxAttempts] is given. A nil decide never retries.
//
// The loop also stops when the request context is done, whether during a
// backoff wait or a blocking decision. It then fails with a
// [*RetryAbortedError] of kind [KindAborted] carrying the last attempt's
// error, so an enclosing [Timeout] reports its deadline as [ErrTimeout].
func Retry(decide Decision, opts ...RetryOption) Handler {
	cfg := retryConfig{warnAfter: defaultWarnAfter}
	for _, opt := range opts {
		opt(&cfg)
	}

	clock := clockOrDefault(cfg.clock)

	return HandlerFunc(func(c *Context, next Next) error {
		// stop returns err unless the request context ended while retrying.
		stop := func(attempt int, err error) error {
			ctxErr := c.Request.Context().Err()
			if ctxErr == nil {
				return err
			}

			aborted := &RetryAbortedError{Err: ctxErr, Last: err, Attempts: attempt}
			c.Err = aborted

			return aborted
		}

		for attempt := 1; ; attempt++ {
			err := next()
			if err == nil {
				return nil
			}

			if decide == nil {
				return err
			}

			if cfg.maxAttempts > 0 && attempt >= cfg.maxAttempts {
				return err
			}

			if !decide(c, attempt, err) {
				return stop(attempt, err)
			}

			ctx := c.Request.Context()
			if ctx.Err() != nil {
				return stop(attempt, err)
			}

			c.hooks.emitRetry(attempt, err)

			logger := zerolog.Ctx(ctx)
			if attempt == cfg.warnAfter {
				logger.Warn().
					Str("target", c.Request.Target).
					Int("attempt", attempt).
					Err(err).
					Msg("request still retrying; check the retry decision is bounded")
			} else {
				logger.Debug().
					Str("target", c.Request.Target).
					Int("attempt", attempt).
					Err(err).
					Msg("retrying request")
			}

			if cfg.strategy == nil {
				continue
			}

			delay := cfg.strategy.Delay(attempt)
			if cfg.maxDelay > 0 && delay > cfg.maxDelay {
				delay = cfg.maxDelay
			}

			if delay <= 0 {
				continue
			}

			timer := clock.NewTimer(delay)
			select {
			case <-timer.C():
			case <-ctx.Done():
				timer.Stop()
				return stop(attempt, err)
			}
		}
	})
}

// Attempts returns a [Decision] allowing n attempts in total (n-1 retries)
// for any error.
func Attempts(n int) Decision {
	return func(_ *Context, attempt int, _ error) bool {
		return attempt < n
	}
}

// RetryTransient returns a [Decision] allowing n attempts in total while the
// error is [IsTransient].
func RetryTransient(n int) Decision {
	return func(_ *Context, attempt int, err error) bool {
		return attempt < n && IsTransient(err)
	}
}
