package onion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Pattern: Timeout; bounds the rest of the chain with a context deadline
// and turns the resulting transport abort into ErrTimeout. Distinguishes
// between its own deadline and cancellation of the caller's context.

// Timeout returns a [Handler] that gives the remainder of the chain d to
// complete.
//
// The deadline is installed as the request context, which the transport
// observes; when it expires the transport aborts and the abort is reported
// as an error matching [ErrTimeout] instead. Other errors, including
// cancellation of the caller's own context, pass through unchanged. The
// handler waits for downstream to return so the Context is never touched
// after the call has settled. d <= 0 disables the deadline.
func Timeout(d time.Duration) Handler {
	return HandlerFunc(func(c *Context, next Next) error {
		if d <= 0 {
			return next()
		}

		parent := c.Request.Context()
		if err := parent.Err(); err != nil {
			return err //nolint:wrapcheck // preserving context error identity
		}

		deadlineCtx, cancel := context.WithTimeout(parent, d)
		defer cancel()

		c.Request.SetContext(deadlineCtx)
		defer c.Request.SetContext(parent)

		err := next()
		if err == nil {
			return nil
		}

		if KindOf(err) != KindAborted || parent.Err() != nil ||
			!errors.Is(deadlineCtx.Err(), context.DeadlineExceeded) {
			return err
		}

		c.hooks.emitTimeout(d)
		zerolog.Ctx(parent).Debug().
			Str("target", c.Request.Target).
			Dur("timeout", d).
			Msg("request timed out")

		timeoutErr := fmt.Errorf("%w after %s", ErrTimeout, d)
		c.Err = timeoutErr

		return timeoutErr
	})
}
