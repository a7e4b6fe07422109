package kafkaops

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
)

// consumer is a direct partition consumer living on the subscription
// connection for the duration of one receive.
type consumer struct {
	client    Client
	topic     string
	partition int32
	from      int64
}

func newConsumer(cl Client, topic string, partition int32, from int64) *consumer {
	cl.AddConsumePartitions(map[string]map[int32]kgo.Offset{
		topic: {partition: kgo.NewOffset().At(from)},
	})

	return &consumer{
		client:    cl,
		topic:     topic,
		partition: partition,
		from:      from,
	}
}

// next blocks until a record at or after the start offset arrives.
// Records fetched together with it are not kept.
func (c *consumer) next(ctx context.Context) (*Message, error) {
	for {
		fetches := c.client.PollRecords(ctx, 1)
		if fetches.IsClientClosed() {
			return nil, kgo.ErrClientClosed
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var ferr error
		fetches.EachError(func(_ string, _ int32, err error) {
			if ferr == nil {
				ferr = err
			}
		})
		if ferr != nil {
			return nil, ferr
		}

		var msg *Message
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			if msg != nil || p.Topic != c.topic || p.Partition != c.partition {
				return
			}

			for _, r := range p.Records {
				if r.Offset >= c.from {
					msg = fromRecord(r, p.HighWatermark)
					return
				}
			}
		})

		if msg != nil {
			return msg, nil
		}
	}
}

func (c *consumer) close() {
	c.client.RemoveConsumePartitions(map[string][]int32{
		c.topic: {c.partition},
	})
}
