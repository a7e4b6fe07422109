package kafkaops

import (
	jprop "go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Publisher or a Subscription.
type Option func(*options)

type options struct {
	dial       Dialer
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	metrics    *Metrics
}

// WithDialer replaces the franz-go client constructor.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dial = d
		}
	}
}

// WithTracerProvider sets the provider of the publish/subscribe/receive spans,
// the global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		dial:   kgoDialer,
		tracer: otel.GetTracerProvider().Tracer(tracerName),
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
			jprop.Jaeger{},
		),
	}

	for i := range opts {
		opts[i](o)
	}

	return o
}
