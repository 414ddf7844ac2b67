package onion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestContext(target string) *Context {
	return NewContext(NewRequest(context.Background(), target, Options{}), nil)
}

func okTerminal(status int) Endpoint {
	return func(c *Context) error {
		c.Response = &Response{Status: status}
		return nil
	}
}

func marker(trace *[]string, name string) Handler {
	return HandlerFunc(func(_ *Context, next Next) error {
		*trace = append(*trace, name+"pre")
		err := next()
		*trace = append(*trace, name+"post")
		return err
	})
}

// ---------------------------------------------------------------------------
// Onion ordering
// ---------------------------------------------------------------------------

func TestComposeOnionOrder(t *testing.T) {
	var trace []string

	pipeline, err := Compose(
		[]Handler{marker(&trace, "1"), marker(&trace, "2"), marker(&trace, "3")},
		okTerminal(200),
	)
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	if err = pipeline(newTestContext("/")); err != nil {
		t.Fatalf("pipeline() error = %v, want nil", err)
	}

	got := strings.Join(trace, " ")
	want := "1pre 2pre 3pre 3post 2post 1post"
	if got != want {
		t.Fatalf("trace = %q, want %q", got, want)
	}
}

func TestComposeEmptyRunsTerminal(t *testing.T) {
	pipeline, err := Compose(nil, okTerminal(204))
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	c := newTestContext("/")
	if err = pipeline(c); err != nil {
		t.Fatalf("pipeline() error = %v, want nil", err)
	}
	if c.Response == nil || c.Response.Status != 204 {
		t.Fatalf("Response = %+v, want status 204", c.Response)
	}
}

// ---------------------------------------------------------------------------
// Short-circuit
// ---------------------------------------------------------------------------

func TestComposeShortCircuit(t *testing.T) {
	var trace []string

	stop := HandlerFunc(func(c *Context, _ Next) error {
		trace = append(trace, "stop")
		c.Response = &Response{Status: 299}
		return nil
	})

	terminalRan := false
	pipeline, err := Compose(
		[]Handler{marker(&trace, "1"), stop, marker(&trace, "3")},
		func(*Context) error {
			terminalRan = true
			return nil
		},
	)
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	c := newTestContext("/")
	if err = pipeline(c); err != nil {
		t.Fatalf("pipeline() error = %v, want nil", err)
	}

	if terminalRan {
		t.Fatal("terminal ran after short-circuit")
	}
	if got := strings.Join(trace, " "); got != "1pre stop 1post" {
		t.Fatalf("trace = %q, want %q", got, "1pre stop 1post")
	}
	if c.Response.Status != 299 {
		t.Fatalf("Response.Status = %d, want 299", c.Response.Status)
	}
}

// ---------------------------------------------------------------------------
// Error propagation
// ---------------------------------------------------------------------------

func TestComposeErrorPropagatesInReverseOrder(t *testing.T) {
	sentinel := errors.New("boom")

	var seen []string
	observe := func(name string) Handler {
		return HandlerFunc(func(_ *Context, next Next) error {
			err := next()
			if errors.Is(err, sentinel) {
				seen = append(seen, name)
			}
			return err
		})
	}

	pipeline, err := Compose(
		[]Handler{observe("outer"), observe("middle"), observe("inner")},
		func(*Context) error { return sentinel },
	)
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	if err = pipeline(newTestContext("/")); !errors.Is(err, sentinel) {
		t.Fatalf("pipeline() error = %v, want %v", err, sentinel)
	}

	want := "inner middle outer"
	if got := strings.Join(seen, " "); got != want {
		t.Fatalf("observed = %q, want %q", got, want)
	}
}

func TestComposeHandlerErrorSkipsDownstream(t *testing.T) {
	mwErr := errors.New("middleware error")
	terminalRan := false

	pipeline, err := Compose(
		[]Handler{HandlerFunc(func(*Context, Next) error { return mwErr })},
		func(*Context) error {
			terminalRan = true
			return nil
		},
	)
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	if err = pipeline(newTestContext("/")); !errors.Is(err, mwErr) {
		t.Fatalf("pipeline() error = %v, want %v", err, mwErr)
	}
	if terminalRan {
		t.Fatal("terminal ran after handler error")
	}
}

func TestComposeHandlerCanRecoverDownstreamError(t *testing.T) {
	pipeline, err := Compose(
		[]Handler{HandlerFunc(func(c *Context, next Next) error {
			if err := next(); err != nil {
				c.Response = &Response{Status: 200, Raw: "recovered"}
			}
			return nil
		})},
		func(*Context) error { return errors.New("downstream") },
	)
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	c := newTestContext("/")
	if err = pipeline(c); err != nil {
		t.Fatalf("pipeline() error = %v, want nil", err)
	}
	if c.Response.Raw != "recovered" {
		t.Fatalf("Response.Raw = %q, want %q", c.Response.Raw, "recovered")
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

type nilPointerHandler struct{}

func (*nilPointerHandler) Handle(_ *Context, next Next) error { return next() }

func TestComposeRejectsInvalidHandlers(t *testing.T) {
	var nilFunc HandlerFunc
	var nilPtr *nilPointerHandler

	cases := map[string][]Handler{
		"nil interface":   {marker(new([]string), "1"), nil},
		"nil HandlerFunc": {nilFunc},
		"nil pointer":     {nilPtr},
	}

	for name, handlers := range cases {
		t.Run(name, func(t *testing.T) {
			pipeline, err := Compose(handlers, okTerminal(200))
			if !errors.Is(err, ErrInvalidMiddleware) {
				t.Fatalf("Compose() error = %v, want ErrInvalidMiddleware", err)
			}
			if pipeline != nil {
				t.Fatal("Compose() returned a pipeline alongside an error")
			}
			if KindOf(err) != KindInvalidMiddleware {
				t.Fatalf("KindOf() = %v, want %v", KindOf(err), KindInvalidMiddleware)
			}
		})
	}
}

func TestComposeRejectsNilTerminal(t *testing.T) {
	if _, err := Compose(nil, nil); !errors.Is(err, ErrInvalidMiddleware) {
		t.Fatalf("Compose() error = %v, want ErrInvalidMiddleware", err)
	}
}

// ---------------------------------------------------------------------------
// Re-entrancy and isolation
// ---------------------------------------------------------------------------

func TestComposeIndependentInvocations(t *testing.T) {
	countingHandler := HandlerFunc(func(c *Context, next Next) error {
		c.Request.Options.Header.Add("X-Seen", "1")
		return next()
	})

	handlers := []Handler{countingHandler, countingHandler}

	first, err := Compose(handlers, okTerminal(200))
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}
	second, err := Compose(handlers, okTerminal(200))
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	for i, p := range []Endpoint{first, second, first} {
		c := newTestContext("/")
		if err := p(c); err != nil {
			t.Fatalf("run %d error = %v, want nil", i, err)
		}
		if got := len(c.Request.Options.Header.Values("X-Seen")); got != 2 {
			t.Fatalf("run %d saw %d handler entries, want 2", i, got)
		}
	}
}

func TestComposeCopiesHandlerSlice(t *testing.T) {
	var trace []string

	handlers := []Handler{marker(&trace, "1")}
	pipeline, err := Compose(handlers, okTerminal(200))
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	handlers[0] = marker(&trace, "replaced")

	if err = pipeline(newTestContext("/")); err != nil {
		t.Fatalf("pipeline() error = %v, want nil", err)
	}
	if got := strings.Join(trace, " "); got != "1pre 1post" {
		t.Fatalf("trace = %q, want %q", got, "1pre 1post")
	}
}

func TestComposeConcurrentCallsDoNotShareCursor(t *testing.T) {
	var entered sync.WaitGroup
	release := make(chan struct{})

	const calls = 8
	entered.Add(calls)

	gate := HandlerFunc(func(_ *Context, next Next) error {
		entered.Done()
		<-release
		return next()
	})

	passthrough := HandlerFunc(func(_ *Context, next Next) error { return next() })

	pipeline, err := Compose([]Handler{gate, passthrough}, okTerminal(200))
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []*Context
	)

	for range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()

			c := newTestContext("/")
			if err := pipeline(c); err != nil {
				t.Errorf("pipeline() error = %v", err)
			}

			mu.Lock()
			results = append(results, c)
			mu.Unlock()
		}()
	}

	entered.Wait()
	close(release)
	wg.Wait()

	for i, c := range results {
		if c.Response == nil || c.Response.Status != 200 {
			t.Fatalf("call %d Response = %+v, want status 200", i, c.Response)
		}
	}
}

func TestNextCalledTwiceRerunsDownstream(t *testing.T) {
	runs := 0

	twice := HandlerFunc(func(_ *Context, next Next) error {
		if err := next(); err != nil {
			return err
		}
		return next()
	})

	pipeline, err := Compose([]Handler{twice}, func(*Context) error {
		runs++
		return nil
	})
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	if err = pipeline(newTestContext("/")); err != nil {
		t.Fatalf("pipeline() error = %v, want nil", err)
	}
	if runs != 2 {
		t.Fatalf("terminal runs = %d, want 2", runs)
	}
}

// ---------------------------------------------------------------------------
// Chain
// ---------------------------------------------------------------------------

func TestChainRunsInOrderAroundNext(t *testing.T) {
	var trace []string

	pipeline, err := Compose(
		[]Handler{
			marker(&trace, "a"),
			Chain(marker(&trace, "b"), marker(&trace, "c")),
			marker(&trace, "d"),
		},
		okTerminal(200),
	)
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	if err = pipeline(newTestContext("/")); err != nil {
		t.Fatalf("pipeline() error = %v, want nil", err)
	}

	want := "apre bpre cpre dpre dpost cpost bpost apost"
	if got := strings.Join(trace, " "); got != want {
		t.Fatalf("trace = %q, want %q", got, want)
	}
}

func TestChainEmptyPassesThrough(t *testing.T) {
	pipeline, err := Compose([]Handler{Chain()}, okTerminal(201))
	if err != nil {
		t.Fatalf("Compose() error = %v, want nil", err)
	}

	c := newTestContext("/")
	if err = pipeline(c); err != nil {
		t.Fatalf("pipeline() error = %v, want nil", err)
	}
	if c.Response.Status != 201 {
		t.Fatalf("Response.Status = %d, want 201", c.Response.Status)
	}
}

func TestComposeRejectsNilEntryInsideChain(t *testing.T) {
	cases := map[string]Handler{
		"direct": Chain(nil),
		"nested": Chain(marker(new([]string), "a"), Chain(nil)),
	}

	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			pipeline, err := Compose([]Handler{h}, okTerminal(200))
			if !errors.Is(err, ErrInvalidMiddleware) {
				t.Fatalf("Compose() error = %v, want ErrInvalidMiddleware", err)
			}
			if pipeline != nil {
				t.Fatal("Compose() returned a pipeline alongside an error")
			}
		})
	}
}

func TestChainHandleDirectlyRejectsNilEntry(t *testing.T) {
	err := Chain(nil).Handle(newTestContext("/"), func() error { return nil })
	if !errors.Is(err, ErrInvalidMiddleware) {
		t.Fatalf("Handle() error = %v, want ErrInvalidMiddleware", err)
	}
}
