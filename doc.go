// Package onion provides an HTTP client built around a composable middleware
// pipeline.
//
// Every call threads a [Context] through an ordered list of [Handler] values.
// Each handler runs its pre-logic, calls next to run the rest of the chain,
// then runs its post-logic on the way back out, so pre-phases execute in
// registration order and post-phases in reverse. The innermost stage is the
// [Transport] call. [Timeout], [Retry] and [ThrowErrors] are built on the same
// mechanism, as are the smaller resilience handlers ([Bulkhead],
// [CircuitBreaker], [RateLimit], [Fallback]).
package onion
