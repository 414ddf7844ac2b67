package onion

import (
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimit returns a [Handler] that waits for a token from limiter before
// running downstream. The wait honours the request context, so an enclosing
// [Timeout] bounds it. A call that cannot be admitted (burst exceeded or
// context done first) fails with an error matching [ErrRateLimited].
//
// The limiter is shared by every call through the returned handler.
func RateLimit(limiter *rate.Limiter) Handler {
	return HandlerFunc(func(c *Context, next Next) error {
		if err := limiter.Wait(c.Request.Context()); err != nil {
			c.hooks.emitRateLimited()

			limited := fmt.Errorf("%w: %w", ErrRateLimited, err)
			c.Err = limited

			return limited
		}

		return next()
	})
}

// NewRateLimit returns a [RateLimit] handler allowing perSecond calls per
// second with the given burst. burst < 1 is raised to 1.
func NewRateLimit(perSecond float64, burst int) Handler {
	return RateLimit(rate.NewLimiter(rate.Limit(perSecond), max(burst, 1)))
}
