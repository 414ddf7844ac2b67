package onion

// Pattern: Fallback; catches the final downstream error and hands it to a
// recovery function, providing a last line of defence.

// Fallback returns a [Handler] that calls recoverFn when downstream fails.
// recoverFn may install a substitute c.Response and return nil to recover the
// call, or return an error (the original or a new one) to keep failing.
func Fallback(recoverFn func(c *Context, err error) error) Handler {
	return HandlerFunc(func(c *Context, next Next) error {
		err := next()
		if err == nil || recoverFn == nil {
			return err
		}

		c.hooks.emitFallbackUsed(err)

		if rerr := recoverFn(c, err); rerr != nil {
			c.Err = rerr
			return rerr
		}

		c.Err = nil

		return nil
	})
}

// FallbackResponse returns a [Fallback] that answers every failed call with a
// copy of resp.
func FallbackResponse(resp Response) Handler {
	return Fallback(func(c *Context, _ error) error {
		r := resp
		c.Response = &r

		return nil
	})
}
