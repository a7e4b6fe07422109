// Package kafka is an endure plugin exposing Kafka publish and subscribe steps.
//
// The [Plugin] reads the optional global "kafka" section through the host [Configurer]
// and registers the "kafka" [PublisherFactory] and [SubscriberFactory] into every
// [Registry] found in the container. Each factory takes the raw step model of the host
// and returns a ready to use operation from the kafkaops package.
//
// Optional dependencies:
//   - [Tracer] supplies the TracerProvider used for the publish, subscribe and receive spans.
//   - MetricsCollector exposes the Prometheus collectors to the host metrics plugin.
package kafka
