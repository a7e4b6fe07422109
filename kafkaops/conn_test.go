package kafkaops

import (
	"context"
	stderr "errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig(t *testing.T) *config {
	t.Helper()

	conf := &config{Brokers: []string{"localhost:9092"}}
	_, err := conf.InitDefault()
	require.NoError(t, err)
	return conf
}

func TestOpen_Lazy(t *testing.T) {
	f := newFakeClient()
	f.pingErr = stderr.New("unreachable")

	conn, err := open(context.Background(), testConfig(t), nil, zap.NewNop(), f.dialer(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.dials)
	assert.Len(t, f.hooks, 1)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, int32(1), f.closes.Load())
	assert.True(t, conn.isClosed())
}

func TestOpen_EagerDropsEarlyDialErrors(t *testing.T) {
	f := newFakeClient()
	conf := testConfig(t)

	dial := func(opts []kgo.Opt, hooks ...kgo.Hook) (Client, error) {
		cl, err := f.dialer()(opts, hooks...)
		// another seed fails while the ping succeeds
		hooks[0].(*connHook).c.fail(stderr.New("seed 2 is down"))
		return cl, err
	}

	conn, err := open(context.Background(), conf, nil, zap.NewNop(), dial, true)
	require.NoError(t, err)

	select {
	case err := <-conn.errCh:
		t.Fatalf("unexpected error: %v", err)
	default:
	}
}

func TestConnHook_ReportsFirstError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newFakeClient()

	conn, err := open(context.Background(), testConfig(t), nil, zap.New(core), f.dialer(), false)
	require.NoError(t, err)

	f.brokerDown(stderr.New("first"))
	f.brokerDown(stderr.New("second"))

	err = <-conn.errCh
	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), "localhost:9092: first")

	select {
	case err := <-conn.errCh:
		t.Fatalf("unexpected error: %v", err)
	default:
	}

	assert.Equal(t, 2, logs.FilterMessage("broker dial failed").Len())

	_ = conn.Close()
	f.brokerDown(stderr.New("after close"))
	assert.Empty(t, conn.errCh)
}

func TestConnHook_SingleSeedFailureIsNotFatal(t *testing.T) {
	f := newFakeClient()
	conf := testConfig(t)
	conf.Brokers = []string{"127.0.0.1:1", "localhost:9092"}

	conn, err := open(context.Background(), conf, nil, zap.NewNop(), f.dialer(), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	dead := kgo.BrokerMetadata{NodeID: math.MinInt32, Host: "127.0.0.1", Port: 1}
	f.dialed(dead, stderr.New("connection refused"))
	f.dialed(dead, stderr.New("connection refused"))
	assert.Empty(t, conn.errCh)

	// a discovered broker is not a seed
	f.dialed(kgo.BrokerMetadata{NodeID: 1, Host: "kafka-1", Port: 9092}, stderr.New("i/o timeout"))
	assert.Empty(t, conn.errCh)

	f.dialed(kgo.BrokerMetadata{NodeID: math.MinInt32 + 1, Host: "localhost", Port: 9092}, stderr.New("connection refused"))
	err = <-conn.errCh
	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, conf.Brokers, cerr.Brokers)
	assert.Contains(t, err.Error(), "localhost:9092: connection refused")
}

func TestConnHook_ReachableClusterIgnoresDialErrors(t *testing.T) {
	f := newFakeClient()

	conn, err := open(context.Background(), testConfig(t), nil, zap.NewNop(), f.dialer(), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	f.dialed(kgo.BrokerMetadata{NodeID: math.MinInt32, Host: "localhost", Port: 9092}, nil)
	f.brokerDown(stderr.New("connection reset by peer"))
	assert.Empty(t, conn.errCh)
}

func TestAwait(t *testing.T) {
	f := newFakeClient()
	conn, err := open(context.Background(), testConfig(t), nil, zap.NewNop(), f.dialer(), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	t.Run("result", func(t *testing.T) {
		v, err := await(context.Background(), conn, func(context.Context) (int, error) {
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("connection error cancels the call", func(t *testing.T) {
		canceled := make(chan struct{})
		go conn.fail(stderr.New("boom"))

		_, err := await(context.Background(), conn, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			close(canceled)
			return 1, ctx.Err()
		})
		require.EqualError(t, err, "boom")

		select {
		case <-canceled:
		case <-time.After(time.Second):
			t.Fatal("call was not canceled")
		}
	})

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := await(ctx, conn, func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
