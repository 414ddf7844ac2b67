package httpx

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/byte4ever/onion"
)

// RoundTripper sends net/http requests through an onion pipeline.
//
// Pattern: Adapter; bridges net/http and the onion request model. Request
// bodies are read fully before the pipeline runs so retries can resend them.
type RoundTripper struct {
	c *onion.Client
}

// NewRoundTripper returns a RoundTripper backed by c. The client's own
// transport must not be an http.Client using this RoundTripper, or calls
// recurse forever.
func NewRoundTripper(c *onion.Client) *RoundTripper {
	return &RoundTripper{c: c}
}

// NewClient returns an *http.Client whose transport is NewRoundTripper(c).
func NewClient(c *onion.Client) *http.Client {
	return &http.Client{Transport: NewRoundTripper(c)}
}

// RoundTrip implements [http.RoundTripper]. Pipeline errors, including
// [onion.HTTPError] from escalation, are returned as-is.
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte

	if req.Body != nil && req.Body != http.NoBody {
		data, err := io.ReadAll(req.Body)
		_ = req.Body.Close()

		if err != nil {
			return nil, fmt.Errorf("httpx: read request body: %w", err)
		}

		body = data
	}

	oreq := onion.NewRequest(req.Context(), req.URL.String(), onion.Options{
		Method: req.Method,
		Header: req.Header.Clone(),
		Body:   body,
	})

	resp, err := rt.c.Do(oreq)
	if err != nil {
		return nil, err
	}

	return &http.Response{
		Status:        strconv.Itoa(resp.Status) + " " + http.StatusText(resp.Status),
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        resp.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       req,
	}, nil
}
