package onion

import (
	"errors"
	"testing"
)

func runEscalation(t *testing.T, status int) (*Context, error) {
	t.Helper()

	pipeline, err := Compose([]Handler{ThrowErrors()}, okTerminal(status))
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	c := newTestContext("/")

	return c, pipeline(c)
}

// ---------------------------------------------------------------------------
// Statuses below 400 never throw
// ---------------------------------------------------------------------------

func TestThrowErrorsPassesBelow400(t *testing.T) {
	for status := 200; status < 400; status++ {
		c, err := runEscalation(t, status)
		if err != nil {
			t.Fatalf("status %d: error = %v, want nil", status, err)
		}
		if c.Response == nil || c.Response.Status != status {
			t.Fatalf("status %d: Response = %+v, want it untouched", status, c.Response)
		}
	}
}

// ---------------------------------------------------------------------------
// Statuses from 400 always throw with the exact code
// ---------------------------------------------------------------------------

func TestThrowErrorsEscalatesFrom400(t *testing.T) {
	for status := 400; status < 600; status++ {
		c, err := runEscalation(t, status)

		var he *HTTPError
		if !errors.As(err, &he) {
			t.Fatalf("status %d: error = %v, want *HTTPError", status, err)
		}
		if he.StatusCode != status || StatusCode(err) != status {
			t.Fatalf("status %d: StatusCode = %d", status, he.StatusCode)
		}
		if he.Response == nil || he.Response.Status != status {
			t.Fatalf("status %d: HTTPError.Response = %+v", status, he.Response)
		}
		if c.Response != nil || c.Err != err { //nolint:errorlint // identity is the point
			t.Fatalf("status %d: Context = {%+v, %v}, want error only", status, c.Response, c.Err)
		}
		if KindOf(err) != KindHTTP {
			t.Fatalf("status %d: KindOf() = %v, want %v", status, KindOf(err), KindHTTP)
		}
	}
}

func TestThrowErrorsStatusClasses(t *testing.T) {
	cases := map[int]error{
		400: ErrBadRequest,
		401: ErrUnauthorized,
		403: ErrForbidden,
		404: ErrInternal,
		500: ErrInternal,
		503: ErrInternal,
	}

	for status, want := range cases {
		_, err := runEscalation(t, status)
		if !errors.Is(err, want) {
			t.Fatalf("status %d: error = %v, want %v", status, err, want)
		}
	}
}

func TestThrowErrorsPropagatesDownstreamError(t *testing.T) {
	sentinel := errors.New("transport down")

	pipeline, err := Compose([]Handler{ThrowErrors()}, func(*Context) error { return sentinel })
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	if err = pipeline(newTestContext("/")); err != sentinel { //nolint:errorlint // identity is the point
		t.Fatalf("pipeline() error = %v, want %v", err, sentinel)
	}
}

func TestThrowErrorsEmitsHook(t *testing.T) {
	var got int

	pipeline, err := Compose([]Handler{ThrowErrors()}, okTerminal(418))
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	c := newTestContext("/")
	c.hooks = &Hooks{OnHTTPError: func(status int) { got = status }}

	_ = pipeline(c)

	if got != 418 {
		t.Fatalf("OnHTTPError status = %d, want 418", got)
	}
}
