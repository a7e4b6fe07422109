package kafkaops

import (
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed record, named the way the host reports it.
type Message struct {
	Topic           string            `json:"topic"`
	Partition       int32             `json:"partition"`
	Key             string            `json:"key"`
	Value           string            `json:"value"`
	Offset          int64             `json:"offset"`
	HighWaterOffset int64             `json:"highWaterOffset"`
	Timestamp       time.Time         `json:"timestamp"`
	Headers         map[string]string `json:"headers,omitempty"`
}

func fromRecord(r *kgo.Record, highWatermark int64) *Message {
	var headers map[string]string
	if len(r.Headers) > 0 {
		headers = make(map[string]string, len(r.Headers))
		// only 1 header per key is supported, the last one wins
		for i := range r.Headers {
			headers[r.Headers[i].Key] = string(r.Headers[i].Value)
		}
	}

	return &Message{
		Topic:           r.Topic,
		Partition:       r.Partition,
		Key:             string(r.Key),
		Value:           string(r.Value),
		Offset:          r.Offset,
		HighWaterOffset: highWatermark,
		Timestamp:       r.Timestamp,
		Headers:         headers,
	}
}

// PublishResult is the broker acknowledgment of a published record.
type PublishResult struct {
	// Message is the serialized ack: {"<topic>":{"<partition>":<offset>}}
	Message   string    `json:"message"`
	Topic     string    `json:"topic"`
	Partition int32     `json:"partition"`
	Offset    int64     `json:"offset"`
	Timestamp time.Time `json:"timestamp"`
}

func newPublishResult(r *kgo.Record) (*PublishResult, error) {
	ack, err := json.Marshal(map[string]map[string]int64{
		r.Topic: {strconv.Itoa(int(r.Partition)): r.Offset},
	})
	if err != nil {
		return nil, err
	}

	return &PublishResult{
		Message:   string(ack),
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Timestamp: r.Timestamp,
	}, nil
}

// serializePayload sends strings and bytes as they are and JSON encodes the rest.
func serializePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(p)
	}
}
