package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/byte4ever/onion"
)

// Collector holds the client-side call metrics. Labels are limited to the
// method, status and error kind to keep cardinality bounded; targets are
// never used as labels.
type Collector struct {
	inflight prometheus.Gauge
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates a Collector whose metric names start with namespace (may be
// empty) and registers it with reg.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_client_inflight_requests",
			Help:      "Current number of in-flight outgoing HTTP calls",
		}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_client_requests_total",
			Help:      "Total outgoing HTTP calls by method, status and error kind",
		}, []string{"method", "status", "error"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_client_request_duration_seconds",
			Help:      "Outgoing HTTP call latency by method",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),
	}

	for _, col := range []prometheus.Collector{c.inflight, c.calls, c.duration} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}

	return c, nil
}

// Handler returns the measuring [onion.Handler].
func (c *Collector) Handler() onion.Handler {
	return onion.HandlerFunc(func(call *onion.Context, next onion.Next) error {
		start := time.Now()

		c.inflight.Inc()
		defer c.inflight.Dec()

		err := next()

		method := call.Request.Method()

		status := "none"
		switch {
		case call.Response != nil:
			status = strconv.Itoa(call.Response.Status)
		case onion.StatusCode(err) != 0:
			status = strconv.Itoa(onion.StatusCode(err))
		}

		kind := ""
		if err != nil {
			kind = onion.KindOf(err).String()
		}

		c.calls.WithLabelValues(method, status, kind).Inc()
		c.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())

		return err
	})
}
