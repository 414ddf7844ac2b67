package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/byte4ever/onion"
)

const instrumentationName = "github.com/byte4ever/onion/tracing"

type config struct {
	provider   trace.TracerProvider
	propagator propagation.TextMapPropagator
}

// Option configures [Middleware].
type Option func(*config)

// WithTracerProvider sets the provider spans are created from. Defaults to
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.provider = tp
	}
}

// WithPropagator sets the propagator used to inject trace headers. Defaults
// to the global propagator.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(c *config) {
		c.propagator = p
	}
}

// Middleware returns an [onion.Handler] wrapping the rest of the chain in a
// client span. The span context becomes the request context for downstream
// stages and is removed again on exit.
func Middleware(opts ...Option) onion.Handler {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.provider == nil {
		cfg.provider = otel.GetTracerProvider()
	}

	if cfg.propagator == nil {
		cfg.propagator = otel.GetTextMapPropagator()
	}

	tracer := cfg.provider.Tracer(instrumentationName)

	return onion.HandlerFunc(func(c *onion.Context, next onion.Next) error {
		parent := c.Request.Context()
		method := c.Request.Method()

		ctx, span := tracer.Start(parent, "HTTP "+method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("http.request.method", method),
				attribute.String("url.full", c.Request.Target),
			),
		)
		defer span.End()

		if c.Request.Options.Header == nil {
			c.Request.Options.Header = make(http.Header)
		}

		cfg.propagator.Inject(ctx, propagation.HeaderCarrier(c.Request.Options.Header))

		c.Request.SetContext(ctx)
		defer c.Request.SetContext(parent)

		err := next()

		if c.Response != nil {
			span.SetAttributes(attribute.Int("http.response.status_code", c.Response.Status))
		} else if code := onion.StatusCode(err); code != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", code))
		}

		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", onion.KindOf(err).String()))
			span.SetStatus(codes.Error, err.Error())
		}

		return err
	})
}
