// Package kafkaops implements single message Kafka operations for test steps:
// publishing one record and consuming messages produced after a subscription.
//
// Both operations are built on the franz-go (kgo) client and own their
// connection for the duration of the call:
//   - [Publisher] opens a connection, sends one record, waits for the broker
//     acknowledgment and closes the connection before returning a [PublishResult].
//   - [Subscription] fetches the latest offset of partition 0 of the topic on
//     Subscribe, then every Receive consumes the next message from that point
//     forward. Unsubscribe releases the connection.
//
// Configuration comes from two places: the optional global `kafka` section read
// through a [Configurer] (brokers, TLS, SASL, producer options, timeouts) and the
// host step model decoded into [PublisherConfig] or [SubscriberConfig].
//
// Failures are reported as [ConnectionError], [OffsetFetchError], [PublishError]
// or [ConsumeError]. None of them is retried and the connection is always closed
// before the error is returned.
package kafkaops
