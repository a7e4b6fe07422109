// Package tests contains end-to-end tests of the kafka step plugin against a real broker.
//
// The plugin runs inside an endure container together with the config plugin, an
// observable logger and an in-memory step registry. Coverage includes:
//
//   - Publish and receive of messages produced after Subscribe.
//   - Sequential receives on one subscription.
//   - Unreachable brokers for both operations.
//   - OpenTelemetry TracerProvider collection from the otel plugin.
//   - Broker outages using Docker based Kafka container restarts.
//
// Tests expect a broker on 127.0.0.1:9092 except the durability ones, which start
// their own containers.
package tests
