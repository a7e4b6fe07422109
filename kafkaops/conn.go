package kafkaops

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"go.uber.org/zap"
)

// Client is the part of the franz-go client the operations rely on.
type Client interface {
	// Ping checks that at least one broker answers.
	Ping(ctx context.Context) error
	// Produce sends the record asynchronously, promise is called exactly once.
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	// Request issues a raw kafka request, used for ListOffsets.
	Request(ctx context.Context, req kmsg.Request) (kmsg.Response, error)
	// AddConsumePartitions starts a direct consumer on the given offsets.
	AddConsumePartitions(partitions map[string]map[int32]kgo.Offset)
	// RemoveConsumePartitions stops consuming and drops buffered fetches.
	RemoveConsumePartitions(partitions map[string][]int32)
	// PollRecords waits for at most maxPollRecords records.
	PollRecords(ctx context.Context, maxPollRecords int) kgo.Fetches
	// Close closes the client and all broker connections.
	Close()
}

var _ Client = (*kgo.Client)(nil)

// Dialer constructs a Client. hooks are installed on the client to observe
// broker level events.
type Dialer func(opts []kgo.Opt, hooks ...kgo.Hook) (Client, error)

func kgoDialer(opts []kgo.Opt, hooks ...kgo.Hook) (Client, error) {
	if len(hooks) > 0 {
		opts = append(opts, kgo.WithHooks(hooks...))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	return cl, nil
}

// connection is one client session owned by a single operation.
type connection struct {
	log     *zap.Logger
	client  Client
	brokers []string

	requestTimeout time.Duration

	// asynchronous transport errors, the first one wins
	errCh  chan error
	closed atomic.Bool
	once   sync.Once
}

// open creates the client. eager connections ping the cluster within the
// ping timeout, lazy ones let the first request surface transport errors.
func open(ctx context.Context, conf *config, kopts []kgo.Opt, log *zap.Logger, dial Dialer, eager bool) (*connection, error) {
	start := time.Now()

	c := &connection{
		log:            log,
		brokers:        conf.Brokers,
		requestTimeout: conf.RequestTimeout,
		errCh:          make(chan error, 1),
	}

	opts := make([]kgo.Opt, 0, len(kopts)+1)
	opts = append(opts, kopts...)
	opts = append(opts, kgo.WithLogger(newLogger(log)))

	cl, err := dial(opts, &connHook{c: c})
	if err != nil {
		return nil, &ConnectionError{Brokers: conf.Brokers, Err: err}
	}
	c.client = cl

	if eager {
		pctx, cancel := context.WithTimeout(ctx, conf.Ping.Timeout)
		err = cl.Ping(pctx)
		cancel()
		if err != nil {
			_ = c.Close()
			return nil, &ConnectionError{Brokers: conf.Brokers, Err: err}
		}

		// the ping reached a broker, nothing reported so far is fatal
		select {
		case <-c.errCh:
		default:
		}
	}

	log.Debug("kafka connection opened", zap.Strings("brokers", c.brokers), zap.Bool("eager", eager), zap.Duration("elapsed", time.Since(start)))
	return c, nil
}

// Close is idempotent, only the first call closes the client.
func (c *connection) Close() error {
	c.once.Do(func() {
		c.closed.Store(true)
		c.client.Close()
		c.log.Debug("kafka connection closed", zap.Strings("brokers", c.brokers))
	})

	return nil
}

func (c *connection) isClosed() bool {
	return c.closed.Load()
}

// fail publishes an asynchronous transport error to the in-flight operation.
func (c *connection) fail(err error) {
	if c.isClosed() {
		return
	}

	select {
	case c.errCh <- err:
	default:
	}
}

type result[T any] struct {
	val T
	err error
}

// await runs call in its own goroutine and returns the first of: the call
// result, an asynchronous connection error, the ctx deadline. The call is
// canceled and waited for on the losing paths, later events are dropped.
func await[T any](ctx context.Context, c *connection, call func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	res := make(chan result[T], 1)
	go func() {
		v, err := call(cctx)
		res <- result[T]{val: v, err: err}
	}()

	var zero T
	select {
	case r := <-res:
		return r.val, r.err
	case err := <-c.errCh:
		cancel()
		<-res
		return zero, err
	case <-ctx.Done():
		cancel()
		<-res
		return zero, ctx.Err()
	}
}

var _ kgo.HookBrokerConnect = (*connHook)(nil)

// connHook turns broker dial failures into a connection error only when every
// seed broker failed before any broker answered. Failures of single seeds or
// of discovered brokers are left to the in-flight request, which retries
// against the remaining brokers until its own timeout.
type connHook struct {
	c *connection

	mu   sync.Mutex
	up   bool
	down map[int32]struct{}
}

func (h *connHook) OnBrokerConnect(meta kgo.BrokerMetadata, _ time.Duration, _ net.Conn, err error) {
	h.mu.Lock()
	if err == nil {
		h.up = true
		h.mu.Unlock()
		return
	}

	// seed brokers carry negative node ids until metadata is loaded
	if meta.NodeID < 0 {
		if h.down == nil {
			h.down = make(map[int32]struct{}, len(h.c.brokers))
		}
		h.down[meta.NodeID] = struct{}{}
	}
	fatal := !h.up && len(h.down) >= len(h.c.brokers)
	h.mu.Unlock()

	h.c.log.Warn("broker dial failed", zap.String("host", meta.Host), zap.Int32("port", meta.Port), zap.Int32("node", meta.NodeID), zap.Bool("fatal", fatal), zap.Error(err))
	if !fatal {
		return
	}

	h.c.fail(&ConnectionError{
		Brokers: h.c.brokers,
		Err:     fmt.Errorf("broker %s:%d: %w", meta.Host, meta.Port, err),
	})
}
