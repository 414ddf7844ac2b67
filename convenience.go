package onion

import (
	"net/http"
	"net/url"
	"strings"
)

// URLPrefix returns a [Handler] that prepends prefix to relative targets.
// Targets that already carry a scheme and host are left alone. The join
// always has exactly one slash, so URLPrefix("http://host") and
// URLPrefix("http://host/") both turn "/resource" into
// "http://host/resource".
func URLPrefix(prefix string) Handler {
	base := strings.TrimRight(prefix, "/")

	return HandlerFunc(func(c *Context, next Next) error {
		if !isAbsoluteURL(c.Request.Target) {
			switch {
			case c.Request.Target == "":
				c.Request.Target = base
			case strings.HasPrefix(c.Request.Target, "?"):
				c.Request.Target = base + c.Request.Target
			default:
				c.Request.Target = base + "/" + strings.TrimLeft(c.Request.Target, "/")
			}
		}

		return next()
	})
}

// DefaultHeaders returns a [Handler] that sets each header in defaults
// unless the call already set it. Per-call headers always win.
func DefaultHeaders(defaults map[string]string) Handler {
	canon := make(map[string]string, len(defaults))
	for k, v := range defaults {
		canon[http.CanonicalHeaderKey(k)] = v
	}

	return HandlerFunc(func(c *Context, next Next) error {
		if c.Request.Options.Header == nil {
			c.Request.Options.Header = make(http.Header)
		}

		for k, v := range canon {
			if _, ok := c.Request.Options.Header[k]; !ok {
				c.Request.Options.Header.Set(k, v)
			}
		}

		return next()
	})
}

func isAbsoluteURL(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}

	return u.Scheme != "" && u.Host != ""
}
