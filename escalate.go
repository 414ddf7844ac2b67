package onion

// Pattern: Escalation; turns responses the transport considers successful
// into errors based on their status code.

// ThrowErrors returns a [Handler] that fails the call with an [*HTTPError]
// when the response produced downstream has a status of 400 or above.
// Statuses below 400 pass through untouched, as do downstream errors. The
// escalated response moves from c.Response to the error.
//
// It must be registered outside the stages that produce the response, and
// inside any [Retry] that should see the escalated error.
func ThrowErrors() Handler {
	return HandlerFunc(func(c *Context, next Next) error {
		if err := next(); err != nil {
			return err
		}

		if c.Response == nil || c.Response.Status < 400 {
			return nil
		}

		err := &HTTPError{StatusCode: c.Response.Status, Response: c.Response}
		c.Response = nil
		c.Err = err
		c.hooks.emitHTTPError(err.StatusCode)

		return err
	})
}
