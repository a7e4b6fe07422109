package kafkaops

import (
	"context"
	"time"

	"github.com/roadrunner-server/errors"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Publisher sends a single record per Publish call over its own connection.
type Publisher struct {
	log   *zap.Logger
	cfg   *config
	kopts []kgo.Opt
	opts  *options

	topic   string
	key     []byte
	value   []byte
	headers map[string]string
}

// NewPublisher builds a publisher from the host step model, on top of the
// optional global `kafka` section.
func NewPublisher(model map[string]any, log *zap.Logger, cfg Configurer, opts ...Option) (*Publisher, error) {
	const op = errors.Op("new_kafka_publisher")

	conf, err := globalConfig(cfg)
	if err != nil {
		return nil, errors.E(op, err)
	}

	var pc PublisherConfig
	err = decodeModel(model, &pc)
	if err != nil {
		return nil, errors.E(op, err)
	}

	if pc.Topic == "" {
		return nil, errors.E(op, errors.Str("topic should not be empty"))
	}

	if pc.Payload == nil {
		return nil, errors.E(op, errors.Str("payload is required"))
	}

	value, err := serializePayload(pc.Payload)
	if err != nil {
		return nil, errors.E(op, err)
	}

	conf.overlay(pc.Brokers, pc.Client, pc.RequestTimeoutMs, pc.ConnectTimeoutMs)

	kopts, err := conf.InitDefault()
	if err != nil {
		return nil, errors.E(op, err)
	}
	// subscriptions read a single partition, records must land on it
	kopts = append(kopts, kgo.RecordPartitioner(kgo.ManualPartitioner()))

	p := &Publisher{
		log:     log,
		cfg:     conf,
		kopts:   kopts,
		opts:    newOptions(opts),
		topic:   pc.Topic,
		value:   value,
		headers: pc.Headers,
	}

	if pc.Key != "" {
		p.key = []byte(pc.Key)
	}

	return p, nil
}

// Publish opens a connection, sends the record and waits for the broker ack.
// The connection is closed before Publish returns, on every path.
func (p *Publisher) Publish(ctx context.Context) (*PublishResult, error) {
	start := time.Now()

	ctx, span := p.opts.tracer.Start(ctx, "kafka_publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", p.topic),
		),
	)
	defer span.End()

	res, err := p.publish(ctx)
	p.opts.metrics.observePublish(p.topic, err, start)
	if err != nil {
		spanError(span, err)
		p.log.Error("kafka publish failed", zap.String("topic", p.topic), zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("messaging.kafka.destination.partition", int(res.Partition)),
		attribute.Int64("messaging.kafka.message.offset", res.Offset),
	)
	p.log.Debug("kafka message published", zap.String("topic", res.Topic), zap.Int32("partition", res.Partition), zap.Int64("offset", res.Offset), zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (p *Publisher) publish(ctx context.Context) (*PublishResult, error) {
	conn, err := open(ctx, p.cfg, p.kopts, p.log, p.opts.dial, true)
	if err != nil {
		return nil, &PublishError{Topic: p.topic, Err: err}
	}

	rec := p.record()
	p.opts.propagator.Inject(ctx, &headerCarrier{rec: rec})

	// the connection error channel is watched by await before and during the send
	acked, err := await(ctx, conn, func(ctx context.Context) (*kgo.Record, error) {
		rctx, cancel := context.WithTimeout(ctx, conn.requestTimeout)
		defer cancel()

		done := make(chan error, 1)
		conn.client.Produce(rctx, rec, func(_ *kgo.Record, err error) {
			done <- err
		})

		return rec, <-done
	})

	_ = conn.Close()

	if err != nil {
		return nil, &PublishError{Topic: p.topic, Err: err}
	}

	res, err := newPublishResult(acked)
	if err != nil {
		return nil, &PublishError{Topic: p.topic, Err: err}
	}

	return res, nil
}

// record is rebuilt for every Publish, kgo owns a record until its promise fires
func (p *Publisher) record() *kgo.Record {
	rec := &kgo.Record{
		Topic:     p.topic,
		Partition: defaultPartition,
		Key:       p.key,
		Value:     p.value,
		Timestamp: time.Now(),
		Headers:   make([]kgo.RecordHeader, 0, len(p.headers)),
	}

	for k, v := range p.headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{
			Key:   k,
			Value: []byte(v),
		})
	}

	return rec
}

// Topic returns the destination topic.
func (p *Publisher) Topic() string {
	return p.topic
}
