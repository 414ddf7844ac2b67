package onion

import (
	"context"
	"errors"
	"net/http"
	"strconv"
)

// ---------------------------------------------------------------------------
// Error kinds and sentinels
// ---------------------------------------------------------------------------.

// ErrorKind is the discriminant callers match on instead of inspecting error
// names or messages.
type ErrorKind int

const (
	// KindUnknown covers errors this package did not classify.
	KindUnknown ErrorKind = iota
	// KindAborted means the transport call was cancelled through its context.
	KindAborted
	// KindNetwork means the transport failed to complete the exchange.
	KindNetwork
	// KindHTTP means a response was escalated by [ThrowErrors].
	KindHTTP
	// KindTimeout means a [Timeout] deadline elapsed.
	KindTimeout
	// KindInvalidMiddleware means the pipeline could not be composed.
	KindInvalidMiddleware
)

// String returns the lowercase kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindAborted:
		return "aborted"
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindTimeout:
		return "timeout"
	case KindInvalidMiddleware:
		return "invalid_middleware"
	default:
		return "unknown"
	}
}

type (
	// OnionError identifies errors produced by the pipeline itself, as
	// opposed to errors returned by user handlers or the transport.
	//nolint:iface // exported for consumer error classification.
	OnionError interface {
		error
		// IsOnion reports whether this error originates from the pipeline.
		IsOnion() bool
	}

	// onionError is the concrete type backing all sentinel errors.
	onionError string

	// TransportError wraps a failure raised by the [Transport].
	TransportError struct {
		Err  error
		Kind ErrorKind
	}

	// RetryAbortedError is returned by [Retry] when the request context ends
	// before the loop does. It unwraps to the context error only, so
	// [KindOf] reports [KindAborted]; Last keeps the error of the final
	// attempt.
	RetryAbortedError struct {
		Err      error
		Last     error
		Attempts int
	}

	// HTTPError is returned by [ThrowErrors] for responses with a status of
	// 400 or above. It unwraps to the class sentinel for its status
	// ([ErrBadRequest], [ErrUnauthorized], [ErrForbidden] or [ErrInternal]).
	HTTPError struct {
		// Response is the escalated response, body already read.
		Response   *Response
		StatusCode int
	}

	// transientError marks a wrapped error as transient (retriable).
	transientError struct {
		err error
	}

	// permanentError marks a wrapped error as permanent (non-retriable).
	permanentError struct {
		err error
	}
)

// Sentinel pipeline errors.
var (
	// ErrTimeout is returned when a [Timeout] deadline elapses first.
	ErrTimeout error = onionError("timeout")
	// ErrInvalidMiddleware is returned when a handler sequence cannot be
	// composed.
	ErrInvalidMiddleware error = onionError("invalid middleware")
	// ErrNoResponse is returned when the chain completes without error but
	// no handler produced a response.
	ErrNoResponse error = onionError("no response")
	// ErrCircuitOpen is returned while a [CircuitBreaker] is open.
	ErrCircuitOpen error = onionError("circuit breaker is open")
	// ErrBulkheadFull is returned when a [Bulkhead] has no free slot.
	ErrBulkheadFull error = onionError("bulkhead full")
	// ErrRateLimited is returned when [RateLimit] cannot admit a call.
	ErrRateLimited error = onionError("rate limited")
)

// HTTP status classes an [HTTPError] unwraps to.
var (
	ErrBadRequest   error = onionError("bad request")
	ErrUnauthorized error = onionError("unauthorized")
	ErrForbidden    error = onionError("forbidden")
	ErrInternal     error = onionError("internal server error")
)

func (e onionError) Error() string { return string(e) }

// IsOnion reports whether the error is a pipeline error.
func (onionError) IsOnion() bool { return true }

func (e *TransportError) Error() string {
	return "onion: transport " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *RetryAbortedError) Error() string {
	msg := "onion: retry aborted after " + strconv.Itoa(e.Attempts) + " attempts: " + e.Err.Error()
	if e.Last != nil {
		msg += " (last error: " + e.Last.Error() + ")"
	}

	return msg
}

func (e *RetryAbortedError) Unwrap() error { return e.Err }

func (e *HTTPError) Error() string {
	return "http status " + strconv.Itoa(e.StatusCode) + ": " + statusClass(e.StatusCode).Error()
}

func (e *HTTPError) Unwrap() error { return statusClass(e.StatusCode) }

func statusClass(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	default:
		return ErrInternal
	}
}

// KindOf classifies err. Raw context cancellation errors count as
// [KindAborted] so that transports which return them unwrapped are still
// recognised.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	if errors.Is(err, ErrTimeout) {
		return KindTimeout
	}

	if errors.Is(err, ErrInvalidMiddleware) {
		return KindInvalidMiddleware
	}

	var he *HTTPError
	if errors.As(err, &he) {
		return KindHTTP
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindAborted
	}

	return KindUnknown
}

// StatusCode returns the status carried by an [HTTPError] in err's chain, or
// 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}

	return 0
}

// ---------------------------------------------------------------------------
// Transient / permanent classification
// ---------------------------------------------------------------------------.

func (e *transientError) Error() string { return "transient: " + e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (e *permanentError) Error() string { return "permanent: " + e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Transient wraps err to mark it as retriable. Returns nil if err is nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}

	return &transientError{err: err}
}

// Permanent wraps err to mark it as non-retriable. Returns nil if err is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// IsPermanent reports whether err was explicitly marked as permanent.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var pe *permanentError

	return errors.As(err, &pe)
}

// IsTransient reports whether retrying err may succeed. An explicit
// [Transient] marker wins; otherwise permanent markers, composition errors,
// aborted calls and 4xx responses (except 408 and 429) are not transient,
// and everything else is. Returns false for nil.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *transientError
	if errors.As(err, &te) {
		return true
	}

	if IsPermanent(err) {
		return false
	}

	switch KindOf(err) {
	case KindInvalidMiddleware, KindAborted:
		return false
	case KindHTTP:
		code := StatusCode(err)
		if code >= 500 || code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
			return true
		}

		return false
	default:
		return true
	}
}
