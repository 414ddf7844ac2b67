package onion

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Client sends requests through an ordered list of handlers ending in a
// [Transport] call.
//
// Handlers are registered with [Client.Use] before calls are issued. A
// Client is safe for concurrent use: every call gets its own [Context] and
// its own position in the chain, and the handler list is snapshotted at the
// start of each call.
type Client struct {
	transport Transport
	hooks     *Hooks
	logger    *zerolog.Logger

	mu       sync.RWMutex
	handlers []Handler
}

// Option configures a [Client].
type Option func(*Client)

// WithTransport replaces the default net/http transport.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithHTTPClient uses hc for the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.transport = NewHTTPTransport(hc)
	}
}

// WithLogger attaches l to every request context that does not already carry
// a zerolog logger. Handlers log through [zerolog.Ctx].
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = &l
	}
}

// WithHooks sets the lifecycle hooks visible to every handler.
func WithHooks(h *Hooks) Option {
	return func(c *Client) {
		c.hooks = h
	}
}

// WithHandlers registers handlers at construction time.
func WithHandlers(handlers ...Handler) Option {
	return func(c *Client) {
		c.handlers = append(c.handlers, handlers...)
	}
}

// New creates a Client. Without [WithTransport] or [WithHTTPClient] it
// sends requests with [NewHTTPTransport](nil).
func New(opts ...Option) *Client {
	c := &Client{}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.transport == nil {
		c.transport = NewHTTPTransport(nil)
	}

	return c
}

// Use appends handlers to the chain and returns c for chaining. The first
// handler registered is the outermost layer.
func (c *Client) Use(handlers ...Handler) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers = append(c.handlers, handlers...)

	return c
}

// Handlers returns a copy of the registered handlers.
func (c *Client) Handlers() []Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.handlers)
}

// Do runs req through the pipeline and returns the final response.
//
// The terminal stage calls the transport and stores either the response or
// the error on the Context. Errors returned by the chain are returned as-is;
// without [ThrowErrors] a 4xx or 5xx reply is an ordinary response. If the
// chain completes without error and without a response, Do returns
// [ErrNoResponse].
func (c *Client) Do(req *Request) (*Response, error) {
	if req.Options.Header == nil {
		req.Options.Header = make(http.Header)
	}

	// A logger already carried by the caller's context wins.
	if c.logger != nil && zerolog.Ctx(req.Context()).GetLevel() == zerolog.Disabled {
		req.SetContext(c.logger.WithContext(req.Context()))
	}

	pipeline, err := Compose(c.Handlers(), c.terminal)
	if err != nil {
		return nil, err
	}

	call := NewContext(req, c.hooks)
	if err := pipeline(call); err != nil {
		return nil, err
	}

	if call.Response == nil {
		return nil, ErrNoResponse
	}

	return call.Response, nil
}

// Fetch sends a request to target built from opts.
func (c *Client) Fetch(ctx context.Context, target string, opts ...RequestOption) (*Response, error) {
	var o Options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return c.Do(NewRequest(ctx, target, o))
}

// Get sends a GET request to target.
func (c *Client) Get(ctx context.Context, target string, opts ...RequestOption) (*Response, error) {
	return c.Fetch(ctx, target, append([]RequestOption{WithMethod(http.MethodGet)}, opts...)...)
}

// Post sends a POST request to target.
func (c *Client) Post(ctx context.Context, target string, opts ...RequestOption) (*Response, error) {
	return c.Fetch(ctx, target, append([]RequestOption{WithMethod(http.MethodPost)}, opts...)...)
}

// PostJSON encodes body as JSON and POSTs it to target.
func (c *Client) PostJSON(ctx context.Context, target string, body any, opts ...RequestOption) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("onion: encode body: %w", err)
	}

	return c.Post(ctx, target, append(
		[]RequestOption{WithBody(data), WithHeader("Content-Type", "application/json")},
		opts...,
	)...)
}

// terminal is the innermost stage: the transport call. It keeps Response and
// Err mutually exclusive so retried attempts start clean.
func (c *Client) terminal(call *Context) error {
	raw, err := c.transport.RoundTrip(call.Request.Context(), call.Request)
	if err != nil {
		call.Response = nil
		call.Err = err

		return err
	}

	call.Response = newResponse(raw)
	call.Err = nil

	return nil
}
