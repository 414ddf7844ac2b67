// Package metrics records Prometheus metrics for calls made through an
// onion client.
//
// Collector exposes a single onion.Handler measuring in-flight calls, call
// totals by method, status and error kind, and call latency. Register it
// outermost to measure whole calls including retries, or inside a Retry to
// measure individual attempts.
package metrics
