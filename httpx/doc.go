// Package httpx exposes an onion client as a net/http RoundTripper.
//
// Code that only knows *http.Client can then send requests through the full
// handler pipeline (timeouts, retries, escalation, metrics, tracing) without
// being rewritten against the onion API.
package httpx
