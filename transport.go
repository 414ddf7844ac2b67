package onion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Transport performs the actual exchange. It is the innermost stage of every
// pipeline and must honour ctx for cancellation.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*RawResponse, error)
}

// TransportFunc adapts a plain function into a [Transport].
type TransportFunc func(ctx context.Context, req *Request) (*RawResponse, error)

// RoundTrip calls f(ctx, req).
func (f TransportFunc) RoundTrip(ctx context.Context, req *Request) (*RawResponse, error) {
	return f(ctx, req)
}

// HTTPTransport sends requests through a [net/http.Client] and reports
// failures as [*TransportError] with an explicit kind.
//
// Pattern: Adapter; bridges net/http and the pipeline's request model.
type HTTPTransport struct {
	hc *http.Client
}

// NewHTTPTransport returns a transport backed by hc. A nil hc uses a client
// with an independent clone of [http.DefaultTransport].
func NewHTTPTransport(hc *http.Client) *HTTPTransport {
	if hc == nil {
		hc = &http.Client{Transport: cloneDefaultTransport()}
	}

	return &HTTPTransport{hc: hc}
}

// RoundTrip sends req and reads the whole response body.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (*RawResponse, error) {
	var body io.Reader = http.NoBody
	if req.Options.Body != nil {
		body = bytes.NewReader(req.Options.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method(), req.Target, body)
	if err != nil {
		return nil, fmt.Errorf("onion: build request: %w", err)
	}

	for k, vs := range req.Options.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := t.hc.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, fmt.Errorf("read response body: %w", err))
	}

	return &RawResponse{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
	}, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: KindAborted, Err: err}
	}

	return &TransportError{Kind: KindNetwork, Err: err}
}

func cloneDefaultTransport() http.RoundTripper {
	if t, ok := http.DefaultTransport.(*http.Transport); ok && t != nil {
		return t.Clone()
	}

	return http.DefaultTransport
}
