package kafkaops

import (
	"fmt"
)

// ConnectionError is returned when the client could not reach the brokers or
// lost them while an operation was in flight.
type ConnectionError struct {
	Brokers []string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("kafka connection to %v: %v", e.Brokers, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// OffsetFetchError is returned by Subscribe when the latest offset of the topic
// could not be obtained. Err is a *ConnectionError when the transport failed.
type OffsetFetchError struct {
	Topic string
	Err   error
}

func (e *OffsetFetchError) Error() string {
	return fmt.Sprintf("kafka latest offset fetch for topic %s: %v", e.Topic, e.Err)
}

func (e *OffsetFetchError) Unwrap() error {
	return e.Err
}

// PublishError is returned when the record was not acknowledged by the broker.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("kafka publish to topic %s: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// ConsumeError is returned by Receive after a successful Subscribe when the
// consumer failed before a message arrived.
type ConsumeError struct {
	Topic     string
	Partition int32
	Offset    int64
	Err       error
}

func (e *ConsumeError) Error() string {
	return fmt.Sprintf("kafka consume from %s[%d]@%d: %v", e.Topic, e.Partition, e.Offset, e.Err)
}

func (e *ConsumeError) Unwrap() error {
	return e.Err
}
