// Package metrics exports dispatch activity as Prometheus metrics through
// router hooks.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bjaus/jsonrpc"
)

// Outcome label values.
const (
	OutcomeSuccess       = "success"
	OutcomeFailure       = "failure"
	OutcomeNotFound      = "not_found"
	OutcomeInvalidParams = "invalid_params"
	OutcomeThrottled     = "throttled"
)

// unknownMethod replaces the method label of calls that match no handler,
// so callers cannot mint new series.
const unknownMethod = "<unknown>"

// Collector holds the dispatch metrics.
type Collector struct {
	messages  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  *prometheus.GaugeVec
	malformed prometheus.Counter
	dropped   prometheus.Counter
}

// New creates a Collector and registers it with reg. namespace prefixes
// every metric name and may be empty.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jsonrpc",
				Name:      "messages_total",
				Help:      "Dispatched messages by namespace, method and outcome.",
			},
			[]string{"namespace", "method", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "jsonrpc",
				Name:      "handler_duration_seconds",
				Help:      "Handler execution time in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"namespace", "method"},
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "jsonrpc",
				Name:      "handlers_in_flight",
				Help:      "Handlers currently executing.",
			},
			[]string{"namespace", "method"},
		),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jsonrpc",
			Name:      "malformed_total",
			Help:      "Inbound messages that were neither a request nor a notification.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jsonrpc",
			Name:      "dropped_responses_total",
			Help:      "Responses that could not be delivered.",
		}),
	}

	for _, col := range []prometheus.Collector{c.messages, c.duration, c.inFlight, c.malformed, c.dropped} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register jsonrpc metrics: %w", err)
		}
	}
	return c, nil
}

// Options returns the router hooks that feed the collector.
func (c *Collector) Options() []jsonrpc.Option {
	return []jsonrpc.Option{
		jsonrpc.WithOnDispatch(func(_ context.Context, ns jsonrpc.Namespace, method string) {
			c.inFlight.WithLabelValues(ns.String(), method).Inc()
		}),
		jsonrpc.WithOnSuccess(func(_ context.Context, ns jsonrpc.Namespace, method string, d time.Duration) {
			c.finish(ns, method, OutcomeSuccess, d)
		}),
		jsonrpc.WithOnFailure(func(_ context.Context, ns jsonrpc.Namespace, method string, _ error, d time.Duration) {
			c.finish(ns, method, OutcomeFailure, d)
		}),
		jsonrpc.WithOnNoHandler(func(_ context.Context, ns jsonrpc.Namespace, _ string) {
			c.messages.WithLabelValues(ns.String(), unknownMethod, OutcomeNotFound).Inc()
		}),
		jsonrpc.WithOnValidationError(func(_ context.Context, ns jsonrpc.Namespace, method string, _ jsonrpc.FieldErrors) {
			c.messages.WithLabelValues(ns.String(), method, OutcomeInvalidParams).Inc()
		}),
		jsonrpc.WithOnThrottled(func(_ context.Context, ns jsonrpc.Namespace, _ string) {
			c.messages.WithLabelValues(ns.String(), unknownMethod, OutcomeThrottled).Inc()
		}),
		jsonrpc.WithOnMalformed(func(context.Context, []byte, error) {
			c.malformed.Inc()
		}),
		jsonrpc.WithOnDrop(func(context.Context, *jsonrpc.Response, error) {
			c.dropped.Inc()
		}),
	}
}

func (c *Collector) finish(ns jsonrpc.Namespace, method, outcome string, d time.Duration) {
	c.inFlight.WithLabelValues(ns.String(), method).Dec()
	c.messages.WithLabelValues(ns.String(), method, outcome).Inc()
	c.duration.WithLabelValues(ns.String(), method).Observe(d.Seconds())
}
