package kafkaops

import (
	"context"

	"github.com/roadrunner-server/errors"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// ListOffsets timestamp asking for the end of the partition
const latestTimestamp int64 = -1

// fetchLatestOffset returns the end offset (high watermark) of the partition.
func fetchLatestOffset(ctx context.Context, cl Client, topic string, partition int32) (int64, error) {
	const op = errors.Op("kafka_fetch_latest_offset")

	rp := kmsg.NewListOffsetsRequestTopicPartition()
	rp.Partition = partition
	rp.Timestamp = latestTimestamp

	rt := kmsg.NewListOffsetsRequestTopic()
	rt.Topic = topic
	rt.Partitions = append(rt.Partitions, rp)

	req := kmsg.NewPtrListOffsetsRequest()
	req.ReplicaID = -1
	req.Topics = append(req.Topics, rt)

	resp, err := req.RequestWith(ctx, cl)
	if err != nil {
		return 0, err
	}

	for i := range resp.Topics {
		if resp.Topics[i].Topic != topic {
			continue
		}

		for _, p := range resp.Topics[i].Partitions {
			if p.Partition != partition {
				continue
			}

			if err := kerr.ErrorForCode(p.ErrorCode); err != nil {
				return 0, err
			}

			// v0 brokers answer with the offsets list
			if len(p.OldStyleOffsets) > 0 {
				return p.OldStyleOffsets[0], nil
			}

			return p.Offset, nil
		}
	}

	return 0, errors.E(op, errors.Errorf("partition %d of topic %s is missing in the ListOffsets response", partition, topic))
}
