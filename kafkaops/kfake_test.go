package kafkaops

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kfake"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// newCluster starts an in-process cluster with a 3 partition topic t1.
func newCluster(t *testing.T) []string {
	t.Helper()

	c, err := kfake.NewCluster(kfake.NumBrokers(1), kfake.SeedTopics(3, "t1"))
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return c.ListenAddrs()
}

func clusterModel(brokers []string) map[string]any {
	return map[string]any{
		"brokers":          brokers,
		"topic":            "t1",
		"requestTimeoutMs": 5000,
	}
}

func publishTo(t *testing.T, log *zap.Logger, brokers []string, payload string) *PublishResult {
	t.Helper()

	model := clusterModel(brokers)
	model["payload"] = payload

	p, err := NewPublisher(model, log, nil)
	require.NoError(t, err)

	res, err := p.Publish(context.Background())
	require.NoError(t, err)
	return res
}

func receiveFrom(t *testing.T, s *Subscription) *Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg, err := s.Receive(ctx)
	require.NoError(t, err)
	return msg
}

func TestCluster_MultiPartitionTopic(t *testing.T) {
	log := zaptest.NewLogger(t)
	brokers := newCluster(t)

	s, err := NewSubscription(clusterModel(brokers), log, nil)
	require.NoError(t, err)
	require.NoError(t, s.Subscribe(context.Background()))
	t.Cleanup(func() { _ = s.Unsubscribe(context.Background()) })

	for i := 0; i < 6; i++ {
		res := publishTo(t, log, brokers, fmt.Sprintf("m%d", i))
		assert.Equal(t, defaultPartition, res.Partition)
		assert.Equal(t, int64(i), res.Offset)
	}

	for i := 0; i < 6; i++ {
		msg := receiveFrom(t, s)
		assert.Equal(t, fmt.Sprintf("m%d", i), msg.Value)
		assert.Equal(t, defaultPartition, msg.Partition)
		assert.Equal(t, int64(i), msg.Offset)
	}
}

func TestCluster_DeadSeedBroker(t *testing.T) {
	log := zaptest.NewLogger(t)
	brokers := append([]string{"127.0.0.1:1"}, newCluster(t)...)

	s, err := NewSubscription(clusterModel(brokers), log, nil)
	require.NoError(t, err)
	require.NoError(t, s.Subscribe(context.Background()))
	t.Cleanup(func() { _ = s.Unsubscribe(context.Background()) })

	for i := 0; i < 3; i++ {
		res := publishTo(t, log, brokers, fmt.Sprintf("m%d", i))
		assert.Equal(t, int64(i), res.Offset)
	}

	for i := 0; i < 3; i++ {
		msg := receiveFrom(t, s)
		assert.Equal(t, fmt.Sprintf("m%d", i), msg.Value)
	}
}

func TestCluster_ReceiveFromLatest(t *testing.T) {
	log := zaptest.NewLogger(t)
	brokers := newCluster(t)

	for i := 0; i < 3; i++ {
		publishTo(t, log, brokers, "old")
	}

	s, err := NewSubscription(clusterModel(brokers), log, nil)
	require.NoError(t, err)
	require.NoError(t, s.Subscribe(context.Background()))
	t.Cleanup(func() { _ = s.Unsubscribe(context.Background()) })

	latest, ok := s.LatestOffset()
	require.True(t, ok)
	assert.Equal(t, int64(3), latest)

	res := publishTo(t, log, brokers, "new")
	assert.Equal(t, int64(3), res.Offset)
	assert.Equal(t, `{"t1":{"0":3}}`, res.Message)

	msg := receiveFrom(t, s)
	assert.Equal(t, "t1", msg.Topic)
	assert.Equal(t, "new", msg.Value)
	assert.Equal(t, int64(3), msg.Offset)
	assert.Equal(t, int64(4), msg.HighWaterOffset)
}

func TestCluster_SequentialReceives(t *testing.T) {
	log := zaptest.NewLogger(t)
	brokers := newCluster(t)

	s, err := NewSubscription(clusterModel(brokers), log, nil)
	require.NoError(t, err)
	require.NoError(t, s.Subscribe(context.Background()))
	t.Cleanup(func() { _ = s.Unsubscribe(context.Background()) })

	publishTo(t, log, brokers, "first")
	first := receiveFrom(t, s)
	assert.Equal(t, StateDelivered, s.State())

	publishTo(t, log, brokers, "second")
	second := receiveFrom(t, s)

	assert.Equal(t, "first", first.Value)
	assert.Equal(t, int64(0), first.Offset)
	assert.Equal(t, "second", second.Value)
	assert.Equal(t, int64(1), second.Offset)
}

func TestCluster_AllSeedsDown(t *testing.T) {
	model := clusterModel([]string{"127.0.0.1:1", "127.0.0.1:2"})
	model["requestTimeoutMs"] = 2000

	s, err := NewSubscription(model, zaptest.NewLogger(t), nil)
	require.NoError(t, err)

	err = s.Subscribe(context.Background())
	require.Error(t, err)

	var oerr *OffsetFetchError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, StateClosed, s.State())
	require.NoError(t, s.Unsubscribe(context.Background()))
}
