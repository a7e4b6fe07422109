package kafka

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/roadrunner-server/endure/v2/dep"
	"github.com/roadrunner-server/errors"
	"github.com/stepkit/kafka/kafkaops"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const (
	PluginName string = "kafka"
)

type Configurer interface {
	// UnmarshalKey takes a single key and unmarshal it into a Struct.
	UnmarshalKey(name string, out any) error
	// Has checks if config section exists.
	Has(name string) bool
}

type Logger interface {
	NamedLogger(name string) *zap.Logger
}

type Tracer interface {
	Tracer() *sdktrace.TracerProvider
}

// Publisher sends one message per call.
type Publisher interface {
	Publish(ctx context.Context) (*kafkaops.PublishResult, error)
}

// Subscriber delivers the messages produced after Subscribe.
type Subscriber interface {
	Subscribe(ctx context.Context) error
	Receive(ctx context.Context) (*kafkaops.Message, error)
	Unsubscribe(ctx context.Context) error
}

// PublisherFactory builds a Publisher from the raw step model.
type PublisherFactory func(model map[string]any) (Publisher, error)

// SubscriberFactory builds a Subscriber from the raw step model.
type SubscriberFactory func(model map[string]any) (Subscriber, error)

// Registry is implemented by the hosts running publish/subscribe steps.
type Registry interface {
	RegisterPublisher(name string, f PublisherFactory)
	RegisterSubscriber(name string, f SubscriberFactory)
}

type Plugin struct {
	mu      sync.RWMutex
	log     *zap.Logger
	cfg     Configurer
	tracer  *sdktrace.TracerProvider
	metrics *kafkaops.Metrics
}

func (p *Plugin) Init(log Logger, cfg Configurer) error {
	const op = errors.Op("kafka_plugin_init")

	if log == nil {
		return errors.E(op, errors.Disabled)
	}

	p.log = log.NamedLogger(PluginName)
	p.cfg = cfg
	p.metrics = kafkaops.NewMetrics()

	if cfg != nil && !cfg.Has(PluginName) {
		p.log.Debug("no global kafka section, brokers are expected in every step")
	}

	return nil
}

func (p *Plugin) Name() string {
	return PluginName
}

func (p *Plugin) Weight() uint {
	return 10
}

func (p *Plugin) Collects() []*dep.In {
	return []*dep.In{
		dep.Fits(func(pp any) {
			p.mu.Lock()
			p.tracer = pp.(Tracer).Tracer()
			p.mu.Unlock()
		}, (*Tracer)(nil)),
		dep.Fits(func(pp any) {
			p.Register(pp.(Registry))
		}, (*Registry)(nil)),
	}
}

// Register adds the kafka publisher and subscriber to the registry.
func (p *Plugin) Register(r Registry) {
	r.RegisterPublisher(PluginName, p.NewPublisher)
	r.RegisterSubscriber(PluginName, p.NewSubscriber)
	p.log.Debug("kafka steps registered")
}

// NewPublisher builds a publisher from the step model and the global section.
func (p *Plugin) NewPublisher(model map[string]any) (Publisher, error) {
	pub, err := kafkaops.NewPublisher(model, p.log, p.cfg, p.options()...)
	if err != nil {
		return nil, err
	}

	return pub, nil
}

// NewSubscriber builds a subscription from the step model and the global section.
func (p *Plugin) NewSubscriber(model map[string]any) (Subscriber, error) {
	sub, err := kafkaops.NewSubscription(model, p.log, p.cfg, p.options()...)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// MetricsCollector implements the host metrics plugin interface.
func (p *Plugin) MetricsCollector() []prometheus.Collector {
	return p.metrics.Collectors()
}

func (p *Plugin) options() []kafkaops.Option {
	p.mu.RLock()
	defer p.mu.RUnlock()

	opts := []kafkaops.Option{kafkaops.WithMetrics(p.metrics)}
	if p.tracer != nil {
		opts = append(opts, kafkaops.WithTracerProvider(p.tracer))
	}

	return opts
}
