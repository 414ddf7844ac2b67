package onion

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

type (
	// Context is the per-call state threaded through every handler. It is
	// created by the [Client] for a single call, mutated in place by the
	// handlers on the way in and on the way out, and discarded when the call
	// returns. A Context must never be shared between concurrent calls.
	//
	// Once the terminal stage has run, exactly one of Response and Err is
	// set. Handlers may replace either.
	Context struct {
		Request  *Request
		Response *Response
		Err      error

		hooks *Hooks
	}

	// Request is the outgoing request: a target URL plus its options. The
	// request-scoped [context.Context] is the cancellation signal observed
	// by the transport.
	Request struct {
		ctx     context.Context
		Target  string
		Options Options
	}

	// Options carries the per-call request settings.
	Options struct {
		// Header holds request headers. Handlers may add to it freely.
		Header http.Header
		// Method is the HTTP method. Empty means GET.
		Method string
		// Body is sent as-is. Nil means no body.
		Body []byte
	}

	// Response is the normalized reply. When the content type is JSON, Data
	// holds the decoded document; otherwise Raw holds the text body. Body
	// always keeps the undecoded bytes.
	Response struct {
		Header http.Header
		Data   any
		Raw    string
		Body   []byte
		Status int
	}

	// RawResponse is what a [Transport] hands back before normalization.
	RawResponse struct {
		Header http.Header
		Body   []byte
		Status int
	}
)

// NewContext returns a Context wrapping req. Hooks may be nil.
func NewContext(req *Request, hooks *Hooks) *Context {
	return &Context{Request: req, hooks: hooks}
}

// Hooks returns the lifecycle hooks attached by the client. The result may be
// nil; all emitters are nil-safe.
func (c *Context) Hooks() *Hooks { return c.hooks }

// NewRequest builds a Request bound to ctx.
func NewRequest(ctx context.Context, target string, opts Options) *Request {
	if opts.Header == nil {
		opts.Header = make(http.Header)
	}

	return &Request{ctx: ctx, Target: target, Options: opts}
}

// Context returns the request's cancellation context. It is never nil.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}

	return r.ctx
}

// SetContext replaces the request's cancellation context. Handlers that
// install a derived context should restore the previous one on exit.
func (r *Request) SetContext(ctx context.Context) {
	r.ctx = ctx
}

// Method returns the effective HTTP method.
func (r *Request) Method() string {
	if r.Options.Method == "" {
		return http.MethodGet
	}

	return r.Options.Method
}

// newResponse normalizes a transport reply. A JSON body that fails to parse
// is kept in Raw with Data left nil.
func newResponse(raw *RawResponse) *Response {
	header := raw.Header
	if header == nil {
		header = make(http.Header)
	}

	resp := &Response{
		Status: raw.Status,
		Header: header,
		Body:   raw.Body,
	}

	if isJSON(header.Get("Content-Type")) && len(raw.Body) > 0 {
		var data any
		if err := json.Unmarshal(raw.Body, &data); err == nil {
			resp.Data = data
			return resp
		}
	}

	resp.Raw = string(raw.Body)

	return resp
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("onion: decode response: %w", err)
	}

	return nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}

	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
