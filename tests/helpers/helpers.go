package helpers

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stepkit/kafka"
	"github.com/stepkit/kafka/kafkaops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stepsProtocol string = "kafka"

// StepRegistry is the host side of the plugin: it keeps the registered factories.
type StepRegistry struct {
	mu          sync.RWMutex
	publishers  map[string]kafka.PublisherFactory
	subscribers map[string]kafka.SubscriberFactory
}

func NewStepRegistry() *StepRegistry {
	return &StepRegistry{
		publishers:  make(map[string]kafka.PublisherFactory),
		subscribers: make(map[string]kafka.SubscriberFactory),
	}
}

func (r *StepRegistry) Init() error {
	return nil
}

func (r *StepRegistry) Name() string {
	return "steps"
}

func (r *StepRegistry) RegisterPublisher(name string, f kafka.PublisherFactory) {
	r.mu.Lock()
	r.publishers[name] = f
	r.mu.Unlock()
}

func (r *StepRegistry) RegisterSubscriber(name string, f kafka.SubscriberFactory) {
	r.mu.Lock()
	r.subscribers[name] = f
	r.mu.Unlock()
}

func (r *StepRegistry) Publisher(t *testing.T, model map[string]any) kafka.Publisher {
	r.mu.RLock()
	f, ok := r.publishers[stepsProtocol]
	r.mu.RUnlock()
	require.True(t, ok, "kafka publisher is not registered")

	p, err := f(model)
	require.NoError(t, err)
	return p
}

func (r *StepRegistry) Subscriber(t *testing.T, model map[string]any) kafka.Subscriber {
	r.mu.RLock()
	f, ok := r.subscribers[stepsProtocol]
	r.mu.RUnlock()
	require.True(t, ok, "kafka subscriber is not registered")

	s, err := f(model)
	require.NoError(t, err)
	return s
}

// Topic returns a fresh topic name, the broker creates it on the first request.
func Topic(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// PublishOK publishes the payload and checks the broker ack.
func PublishOK(r *StepRegistry, topic string, payload any) func(t *testing.T) {
	return func(t *testing.T) {
		p := r.Publisher(t, map[string]any{
			"topic":   topic,
			"payload": payload,
			"key":     "k-" + topic,
		})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		defer cancel()

		res, err := p.Publish(ctx)
		require.NoError(t, err)

		ack := map[string]map[string]int64{}
		require.NoError(t, json.Unmarshal([]byte(res.Message), &ack))
		assert.Contains(t, ack, topic)
		assert.Equal(t, res.Offset, ack[topic]["0"])
	}
}

// PublishErr expects the publish to fail with a connection error.
func PublishErr(r *StepRegistry, topic string) func(t *testing.T) {
	return func(t *testing.T) {
		p := r.Publisher(t, map[string]any{
			"topic":   topic,
			"payload": `{"hello":"world"}`,
		})

		_, err := p.Publish(context.Background())
		require.Error(t, err)

		var perr *kafkaops.PublishError
		assert.ErrorAs(t, err, &perr)
	}
}

// Receive waits for one message and checks its value.
func Receive(s kafka.Subscriber, topic, value string) func(t *testing.T) {
	return func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		defer cancel()

		msg, err := s.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, topic, msg.Topic)
		assert.Equal(t, value, msg.Value)
		assert.Equal(t, msg.Offset+1, msg.HighWaterOffset)
	}
}

// KafkaDocker starts a single broker on 127.0.0.1:9092. The broker is paused,
// started again and removed through the channels.
func KafkaDocker(pause, start, remove chan struct{}) (chan struct{}, error) {
	ctx := context.Background()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}

	networkName := "kafka-steps-e2e"
	_, err = cli.NetworkCreate(ctx, networkName, network.CreateOptions{})
	if err != nil {
		_ = cli.Close()
		return nil, err
	}

	netConf := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			networkName: {},
		},
	}

	img, err := cli.ImagePull(ctx, "confluentinc/cp-kafka:7.8.2", image.PullOptions{})
	if err != nil {
		_ = cli.Close()
		return nil, err
	}
	_, _ = io.Copy(os.Stdout, img)
	_ = img.Close()

	k, err := cli.ContainerCreate(ctx, &container.Config{
		Image: "confluentinc/cp-kafka:7.8.2",
		Tty:   false,
		Env: []string{
			"CLUSTER_ID=" + "MkU3OEVBNTcwNTJENDM2Qk",
			"KAFKA_NODE_ID=1",
			"KAFKA_PROCESS_ROLES=broker,controller",
			"KAFKA_CONTROLLER_QUORUM_VOTERS=1@broker:29093",
			"KAFKA_CONTROLLER_LISTENER_NAMES=CONTROLLER",
			"KAFKA_LISTENERS=PLAINTEXT://0.0.0.0:9092,PLAINTEXT_INTERNAL://broker:29092,CONTROLLER://broker:29093",
			"KAFKA_LISTENER_SECURITY_PROTOCOL_MAP=PLAINTEXT:PLAINTEXT,PLAINTEXT_INTERNAL:PLAINTEXT,CONTROLLER:PLAINTEXT",
			"KAFKA_ADVERTISED_LISTENERS=PLAINTEXT://127.0.0.1:9092,PLAINTEXT_INTERNAL://broker:29092",
			"KAFKA_INTER_BROKER_LISTENER_NAME=PLAINTEXT_INTERNAL",
			"KAFKA_AUTO_CREATE_TOPICS_ENABLE=true",
			"KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR=1",
			"KAFKA_TRANSACTION_STATE_LOG_MIN_ISR=1",
			"KAFKA_TRANSACTION_STATE_LOG_REPLICATION_FACTOR=1",
		},
	}, &container.HostConfig{
		PortBindings: map[nat.Port][]nat.PortBinding{
			"9092/tcp": {
				nat.PortBinding{HostIP: "127.0.0.1", HostPort: "9092"},
			},
		},
	}, netConf, nil, "broker")
	if err != nil {
		_ = cli.Close()
		return nil, err
	}

	err = cli.ContainerStart(ctx, k.ID, container.StartOptions{})
	if err != nil {
		_ = cli.Close()
		return nil, err
	}

	done := make(chan struct{}, 1)

	go func() {
		defer func() {
			_ = cli.Close()
		}()

		for {
			select {
			case <-pause:
				timeout := 10
				err2 := cli.ContainerStop(context.Background(), k.ID, container.StopOptions{
					Signal:  "SIGKILL",
					Timeout: &timeout,
				})
				if err2 != nil {
					panic(err2)
				}
			case <-start:
				err2 := cli.ContainerStart(context.Background(), k.ID, container.StartOptions{})
				if err2 != nil {
					panic(err2)
				}
			case <-remove:
				bg := context.Background()

				timeout := 10
				_ = cli.ContainerStop(bg, k.ID, container.StopOptions{
					Signal:  "SIGKILL",
					Timeout: &timeout,
				})

				err2 := cli.ContainerRemove(bg, k.ID, container.RemoveOptions{
					RemoveVolumes: true,
					Force:         true,
				})
				if err2 != nil {
					panic(err2)
				}

				_ = cli.NetworkRemove(bg, networkName)

				done <- struct{}{}
				return
			}
		}
	}()

	return done, nil
}
