// Package tracing adds OpenTelemetry client spans to onion calls.
//
// Middleware starts a span of kind client around the rest of the chain,
// injects the configured propagator's headers into the outgoing request and
// records the response status or error on the span.
package tracing
