package kafkaops

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

var timeZero time.Time

func TestFromRecord(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	msg := fromRecord(&kgo.Record{
		Topic:     "t1",
		Partition: 0,
		Offset:    42,
		Key:       []byte("k"),
		Value:     []byte("world"),
		Timestamp: ts,
		Headers: []kgo.RecordHeader{
			{Key: "a", Value: []byte("1")},
			{Key: "a", Value: []byte("2")},
		},
	}, 43)

	assert.Equal(t, "t1", msg.Topic)
	assert.Equal(t, int64(42), msg.Offset)
	assert.Equal(t, int64(43), msg.HighWaterOffset)
	assert.Equal(t, "k", msg.Key)
	assert.Equal(t, "world", msg.Value)
	assert.Equal(t, map[string]string{"a": "2"}, msg.Headers)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"highWaterOffset":43`)
	assert.NotContains(t, string(data), `"headers"`+":null")

	assert.Nil(t, fromRecord(&kgo.Record{Topic: "t1"}, 1).Headers)
}

func TestNewPublishResult(t *testing.T) {
	res, err := newPublishResult(&kgo.Record{Topic: "orders", Partition: 2, Offset: 11})
	require.NoError(t, err)
	assert.Equal(t, `{"orders":{"2":11}}`, res.Message)
	assert.Equal(t, int32(2), res.Partition)
	assert.Equal(t, int64(11), res.Offset)
}

func TestSerializePayload(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		want    string
	}{
		{name: "string", payload: "plain text", want: "plain text"},
		{name: "bytes", payload: []byte{'h', 'i'}, want: "hi"},
		{name: "raw json", payload: json.RawMessage(`{"a":1}`), want: `{"a":1}`},
		{name: "number", payload: 12, want: "12"},
		{name: "bool", payload: true, want: "true"},
		{name: "map", payload: map[string]any{"a": []int{1, 2}}, want: `{"a":[1,2]}`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := serializePayload(c.payload)
			require.NoError(t, err)
			assert.Equal(t, c.want, string(got))
		})
	}

	_, err := serializePayload(func() {})
	assert.Error(t, err)
}
