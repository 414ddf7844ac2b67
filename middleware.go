package onion

import (
	"fmt"
	"reflect"
	"slices"
)

// Pattern: Chain of Responsibility; each handler receives the Context and a
// continuation for the rest of the chain, and decides whether, when and how
// often to run it.

type (
	// Next runs the remainder of the chain from the position it is bound to.
	// Calling it twice runs the downstream stages twice.
	Next func() error

	// Endpoint runs a complete pipeline (or its terminal stage) for one call.
	Endpoint func(c *Context) error

	// Handler is one layer of the pipeline. Code before next() is the
	// pre-phase, code after it the post-phase. Not calling next
	// short-circuits every downstream stage.
	Handler interface {
		Handle(c *Context, next Next) error
	}

	// HandlerFunc adapts an ordinary function into a [Handler].
	HandlerFunc func(c *Context, next Next) error
)

// Handle calls f(c, next).
func (f HandlerFunc) Handle(c *Context, next Next) error { return f(c, next) }

// Compose builds a single [Endpoint] from handlers and the terminal stage.
//
// Compose(handlers, terminal) runs handlers[0] first; its next runs
// handlers[1], and so on, until the last next runs terminal. Errors travel
// back out through every entered handler in reverse order. Each invocation
// of the returned Endpoint keeps its own cursor, so one composition may be
// used by concurrent calls as long as the handlers themselves are safe.
//
// A nil handler entry, including one nested in a [Chain], or a nil terminal
// returns [ErrInvalidMiddleware].
func Compose(handlers []Handler, terminal Endpoint) (Endpoint, error) {
	if err := validateHandlers(handlers, "handler"); err != nil {
		return nil, err
	}

	if terminal == nil {
		return nil, fmt.Errorf("%w: terminal is nil", ErrInvalidMiddleware)
	}

	// Later appends to the caller's slice must not reach this pipeline.
	stack := slices.Clone(handlers)

	return func(c *Context) error {
		return dispatch(c, stack, 0, func() error { return terminal(c) })
	}, nil
}

// chain is the [Handler] built by [Chain].
type chain struct {
	stack []Handler
}

// Chain folds handlers into a single [Handler] that runs them in order
// around whatever follows it. Chain() is a pass-through. Nil entries are
// reported by [Compose] when the chain is composed.
func Chain(handlers ...Handler) Handler {
	return &chain{stack: slices.Clone(handlers)}
}

// Handle runs the chained handlers, then next.
func (ch *chain) Handle(c *Context, next Next) error {
	if err := validateHandlers(ch.stack, "chained handler"); err != nil {
		return err
	}

	return dispatch(c, ch.stack, 0, next)
}

func dispatch(c *Context, stack []Handler, i int, last Next) error {
	if i == len(stack) {
		return last()
	}

	return stack[i].Handle(c, func() error {
		return dispatch(c, stack, i+1, last)
	})
}

// validateHandlers rejects nil entries, descending into chains.
func validateHandlers(handlers []Handler, what string) error {
	for i, h := range handlers {
		if isNilHandler(h) {
			return fmt.Errorf("%w: %s at index %d is nil", ErrInvalidMiddleware, what, i)
		}

		if ch, ok := h.(*chain); ok {
			if err := validateHandlers(ch.stack, "chained handler"); err != nil {
				return fmt.Errorf("%s at index %d: %w", what, i, err)
			}
		}
	}

	return nil
}

// isNilHandler catches untyped nil as well as typed nils hidden in the
// interface (nil HandlerFunc, nil pointer receivers).
func isNilHandler(h Handler) bool {
	if h == nil {
		return true
	}

	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}
