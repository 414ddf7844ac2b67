package onion

import "net/http"

// RequestOption configures the [Options] of a single call.
type RequestOption func(*Options)

// WithMethod sets the HTTP method.
func WithMethod(method string) RequestOption {
	return func(o *Options) {
		o.Method = method
	}
}

// WithHeader sets header key to value, replacing earlier values.
func WithHeader(key, value string) RequestOption {
	return func(o *Options) {
		if o.Header == nil {
			o.Header = make(http.Header)
		}

		o.Header.Set(key, value)
	}
}

// WithHeaders copies every value of h into the request headers.
func WithHeaders(h http.Header) RequestOption {
	return func(o *Options) {
		if o.Header == nil {
			o.Header = make(http.Header)
		}

		for k, vs := range h {
			for _, v := range vs {
				o.Header.Add(k, v)
			}
		}
	}
}

// WithBody sets the raw request body.
func WithBody(body []byte) RequestOption {
	return func(o *Options) {
		o.Body = body
	}
}
