package kafkaops

import (
	"context"
	"sync"
	"time"

	"github.com/roadrunner-server/errors"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Subscription consumes messages produced to a topic after Subscribe, one per
// Receive call.
//
// Known limitation: messages are not buffered between Receive calls. Each
// Receive starts a new consumer right after the last delivered offset, so no
// message is skipped, but records fetched beyond the returned one are dropped
// and fetched again by the next call.
type Subscription struct {
	mu    sync.Mutex
	log   *zap.Logger
	cfg   *config
	kopts []kgo.Opt
	opts  *options

	topic     string
	partition int32

	state  State
	conn   *connection
	latest int64
	next   int64
}

// NewSubscription builds a subscription from the host step model, on top of the
// optional global `kafka` section. Nothing is dialed until Subscribe.
func NewSubscription(model map[string]any, log *zap.Logger, cfg Configurer, opts ...Option) (*Subscription, error) {
	const op = errors.Op("new_kafka_subscription")

	conf, err := globalConfig(cfg)
	if err != nil {
		return nil, errors.E(op, err)
	}

	var sc SubscriberConfig
	err = decodeModel(model, &sc)
	if err != nil {
		return nil, errors.E(op, err)
	}

	requestMs, connectMs := sc.RequestTimeoutMs, sc.ConnectTimeoutMs
	if sc.Options != nil {
		if sc.Topic == "" {
			sc.Topic = sc.Options.Topic
		}
		if requestMs <= 0 {
			requestMs = sc.Options.RequestTimeout
		}
		if connectMs <= 0 {
			connectMs = sc.Options.ConnectTimeout
		}
	}

	if sc.Topic == "" {
		return nil, errors.E(op, errors.Str("topic should not be empty"))
	}

	conf.overlay(sc.Brokers, sc.Client, requestMs, connectMs)

	kopts, err := conf.InitDefault()
	if err != nil {
		return nil, errors.E(op, err)
	}

	return &Subscription{
		log:       log,
		cfg:       conf,
		kopts:     kopts,
		opts:      newOptions(opts),
		topic:     sc.Topic,
		partition: defaultPartition,
		state:     StateInit,
	}, nil
}

// Subscribe connects and fetches the latest offset of the topic. Any failure
// releases the connection and returns an *OffsetFetchError.
func (s *Subscription) Subscribe(ctx context.Context) error {
	const op = errors.Op("kafka_subscribe")
	start := time.Now()

	s.mu.Lock()
	if s.state != StateInit {
		st := s.state
		s.mu.Unlock()
		return errors.E(op, errors.Errorf("subscribe is not allowed in the %s state", st))
	}
	s.state = StateConnecting
	s.mu.Unlock()

	ctx, span := s.opts.tracer.Start(ctx, "kafka_subscribe",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", s.topic),
		),
	)
	defer span.End()

	offset, conn, err := s.subscribe(ctx)
	s.opts.metrics.observeSubscribe(s.topic, err, start)
	if err != nil {
		s.setState(StateClosed)
		spanError(span, err)
		s.log.Error("kafka subscribe failed", zap.String("topic", s.topic), zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.latest = offset
	s.next = offset
	s.state = StateSubscribed
	s.mu.Unlock()

	span.SetAttributes(attribute.Int64("messaging.kafka.message.offset", offset))
	s.log.Debug("kafka subscription is ready", zap.String("topic", s.topic), zap.Int32("partition", s.partition), zap.Int64("latest_offset", offset), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Subscription) subscribe(ctx context.Context) (int64, *connection, error) {
	conn, err := open(ctx, s.cfg, s.kopts, s.log, s.opts.dial, false)
	if err != nil {
		return 0, nil, &OffsetFetchError{Topic: s.topic, Err: err}
	}

	s.setState(StateOffsetFetching)

	offset, err := await(ctx, conn, func(ctx context.Context) (int64, error) {
		rctx, cancel := context.WithTimeout(ctx, conn.requestTimeout)
		defer cancel()
		return fetchLatestOffset(rctx, conn.client, s.topic, s.partition)
	})
	if err != nil {
		s.setState(StateFailed)
		_ = conn.Close()
		return 0, nil, &OffsetFetchError{Topic: s.topic, Err: err}
	}

	return offset, conn, nil
}

// Receive waits for the next message at or after the current position.
// A consumer failure closes the subscription and returns a *ConsumeError.
//
// The wait is bounded only by ctx: the request timeout does not apply and an
// idle topic blocks until ctx is done. Callers that need a deadline set one on
// ctx. An expired ctx closes the subscription like any other consumer failure.
func (s *Subscription) Receive(ctx context.Context) (*Message, error) {
	const op = errors.Op("kafka_receive")
	start := time.Now()

	s.mu.Lock()
	if !s.state.canReceive() {
		st := s.state
		s.mu.Unlock()
		if st == StateConsuming {
			return nil, errors.E(op, errors.Str("another receive is pending on this subscription"))
		}
		return nil, errors.E(op, errors.Errorf("receive is not allowed in the %s state, the latest offset should be fetched first", st))
	}
	s.state = StateConsuming
	conn, from := s.conn, s.next
	s.mu.Unlock()

	ctx, span := s.opts.tracer.Start(ctx, "kafka_receive",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", s.topic),
			attribute.Int64("messaging.kafka.offset.start", from),
		),
	)
	defer span.End()

	c := newConsumer(conn.client, s.topic, s.partition, from)
	msg, err := await(ctx, conn, c.next)
	c.close()

	s.opts.metrics.observeReceive(s.topic, err, start)

	if err != nil {
		s.setState(StateFailed)
		_ = conn.Close()
		s.setState(StateClosed)

		cerr := &ConsumeError{Topic: s.topic, Partition: s.partition, Offset: from, Err: err}
		spanError(span, cerr)
		s.log.Error("kafka receive failed", zap.String("topic", s.topic), zap.Int64("offset", from), zap.Error(err))
		return nil, cerr
	}

	s.mu.Lock()
	s.next = msg.Offset + 1
	if s.state == StateConsuming {
		s.state = StateDelivered
	}
	s.mu.Unlock()

	if len(msg.Headers) > 0 {
		pctx := s.opts.propagator.Extract(ctx, propagation.MapCarrier(msg.Headers))
		if sc := trace.SpanContextFromContext(pctx); sc.IsValid() {
			span.AddLink(trace.Link{SpanContext: sc})
		}
	}

	span.SetAttributes(attribute.Int64("messaging.kafka.message.offset", msg.Offset))
	s.log.Debug("kafka message received", zap.String("topic", msg.Topic), zap.Int32("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Int64("high_water_offset", msg.HighWaterOffset), zap.Duration("elapsed", time.Since(start)))
	return msg, nil
}

// Unsubscribe closes the connection once the latest offset was fetched and is
// a no-op before that or after the subscription was closed.
func (s *Subscription) Unsubscribe(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.canUnsubscribe() {
		s.log.Debug("kafka unsubscribe skipped", zap.String("topic", s.topic), zap.Stringer("state", s.state))
		return nil
	}

	s.state = StateClosed
	err := s.conn.Close()
	s.log.Debug("kafka unsubscribed", zap.String("topic", s.topic), zap.Int64("next_offset", s.next))
	return err
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LatestOffset returns the offset fetched by Subscribe, ok is false before that.
func (s *Subscription) LatestOffset() (offset int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state { //nolint:exhaustive
	case StateInit, StateConnecting, StateOffsetFetching:
		return 0, false
	}

	if s.conn == nil {
		return 0, false
	}

	return s.latest, true
}

// Topic returns the consumed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

func (s *Subscription) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
