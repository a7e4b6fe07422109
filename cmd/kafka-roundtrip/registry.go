package main

import (
	"sync"

	"github.com/roadrunner-server/errors"
	"github.com/stepkit/kafka"
)

const protocol string = "kafka"

type registry struct {
	mu          sync.RWMutex
	publishers  map[string]kafka.PublisherFactory
	subscribers map[string]kafka.SubscriberFactory
}

func newRegistry() *registry {
	return &registry{
		publishers:  make(map[string]kafka.PublisherFactory),
		subscribers: make(map[string]kafka.SubscriberFactory),
	}
}

func (r *registry) RegisterPublisher(name string, f kafka.PublisherFactory) {
	r.mu.Lock()
	r.publishers[name] = f
	r.mu.Unlock()
}

func (r *registry) RegisterSubscriber(name string, f kafka.SubscriberFactory) {
	r.mu.Lock()
	r.subscribers[name] = f
	r.mu.Unlock()
}

func (r *registry) publisher(model map[string]any) (kafka.Publisher, error) {
	const op = errors.Op("roundtrip_publisher")

	r.mu.RLock()
	f, ok := r.publishers[protocol]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.E(op, errors.Errorf("no publisher registered for %s", protocol))
	}

	return f(model)
}

func (r *registry) subscriber(model map[string]any) (kafka.Subscriber, error) {
	const op = errors.Op("roundtrip_subscriber")

	r.mu.RLock()
	f, ok := r.subscribers[protocol]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.E(op, errors.Errorf("no subscriber registered for %s", protocol))
	}

	return f(model)
}
