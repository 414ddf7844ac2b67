package onion

import "sync/atomic"

// Bulkhead returns a [Handler] that lets at most maxConcurrent calls run the
// downstream chain at once and rejects the rest with [ErrBulkheadFull].
// The slot counter is shared by every call through the returned handler.
//
// Pattern: Bulkhead; a semaphore-based concurrency limiter, lock-free via
// atomic CAS for slot acquisition.
func Bulkhead(maxConcurrent int) Handler {
	limit := int64(maxConcurrent)

	var current atomic.Int64

	acquire := func() bool {
		for {
			cur := current.Load()
			if cur >= limit {
				return false
			}

			if current.CompareAndSwap(cur, cur+1) {
				return true
			}
		}
	}

	return HandlerFunc(func(c *Context, next Next) error {
		if !acquire() {
			c.hooks.emitBulkheadFull()
			c.Err = ErrBulkheadFull

			return ErrBulkheadFull
		}
		defer current.Add(-1)

		return next()
	})
}
