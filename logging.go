package onion

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logging returns a [Handler] that logs every call through the zerolog
// logger carried by the request context (see [WithLogger]). Successful calls
// are logged at debug level, failures at warn level with the error kind.
func Logging() Handler {
	return HandlerFunc(func(c *Context, next Next) error {
		logger := zerolog.Ctx(c.Request.Context())
		start := time.Now()

		err := next()

		var event *zerolog.Event
		if err != nil {
			event = logger.Warn().Err(err).Stringer("kind", KindOf(err))
		} else {
			event = logger.Debug()
		}

		if c.Response != nil {
			event = event.Int("status", c.Response.Status)
		}

		if id := c.Request.Options.Header.Get(RequestIDHeader); id != "" {
			event = event.Str("request_id", id)
		}

		event.
			Str("method", c.Request.Method()).
			Str("target", c.Request.Target).
			Dur("duration", time.Since(start)).
			Msg("http request")

		return err
	})
}

// RequestIDHeader is the header [RequestID] populates.
const RequestIDHeader = "X-Request-ID"

// RequestID returns a [Handler] that tags each call with a UUID v4 in the
// X-Request-ID header unless the caller already set one. Retries reuse the
// same id.
func RequestID() Handler {
	return HandlerFunc(func(c *Context, next Next) error {
		if c.Request.Options.Header.Get(RequestIDHeader) == "" {
			c.Request.Options.Header.Set(RequestIDHeader, uuid.NewString())
		}

		return next()
	})
}
