package kafkaops

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/mitchellh/mapstructure"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// fakeClient is an in-memory stand-in for a single partition kafka cluster.
type fakeClient struct {
	mu sync.Mutex

	dialErr    error
	pingErr    error
	produceErr error
	// produceBlock keeps the record in flight until the request ctx is done
	produceBlock bool
	// onProduce runs while the record is in flight
	onProduce  func()
	nextOffset int64

	latest         int64
	listErr        error
	listErrCode    int16
	listBlock      bool
	listNoResponse bool

	hooks     []kgo.Hook
	dials     int
	produced  []*kgo.Record
	producing chan struct{}
	polling   chan struct{}

	records  chan *kgo.Record
	fetchErr chan error
	assigned []kgo.Offset
	removes  int

	closes    atomic.Int32
	closeOnce sync.Once
	closedCh  chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		producing: make(chan struct{}, 1),
		polling:   make(chan struct{}, 16),
		records:   make(chan *kgo.Record, 16),
		fetchErr:  make(chan error, 1),
		closedCh:  make(chan struct{}),
	}
}

func (f *fakeClient) dialer() Dialer {
	return func(_ []kgo.Opt, hooks ...kgo.Hook) (Client, error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.dials++
		if f.dialErr != nil {
			return nil, f.dialErr
		}
		f.hooks = hooks
		return f, nil
	}
}

// brokerDown emulates a failed dial of the only seed broker.
func (f *fakeClient) brokerDown(err error) {
	f.dialed(kgo.BrokerMetadata{NodeID: math.MinInt32, Host: "localhost", Port: 9092}, err)
}

// dialed reports a broker dial outcome to the client hooks.
func (f *fakeClient) dialed(meta kgo.BrokerMetadata, err error) {
	f.mu.Lock()
	hooks := f.hooks
	f.mu.Unlock()

	for _, h := range hooks {
		if hc, ok := h.(kgo.HookBrokerConnect); ok {
			hc.OnBrokerConnect(meta, 0, nil, err)
		}
	}
}

func (f *fakeClient) Ping(context.Context) error {
	return f.pingErr
}

func (f *fakeClient) Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.mu.Lock()
	f.produced = append(f.produced, r)
	block, err, hook := f.produceBlock, f.produceErr, f.onProduce
	r.Offset = f.nextOffset
	if err == nil {
		f.nextOffset++
	}
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	select {
	case f.producing <- struct{}{}:
	default:
	}

	if block {
		go func() {
			<-ctx.Done()
			promise(r, ctx.Err())
		}()
		return
	}

	promise(r, err)
}

func (f *fakeClient) Request(ctx context.Context, req kmsg.Request) (kmsg.Response, error) {
	lreq, ok := req.(*kmsg.ListOffsetsRequest)
	if !ok {
		return nil, kgo.ErrClientClosed
	}

	if f.listBlock {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if f.listErr != nil {
		return nil, f.listErr
	}

	resp := kmsg.NewPtrListOffsetsResponse()
	if f.listNoResponse {
		return resp, nil
	}

	for _, t := range lreq.Topics {
		rt := kmsg.NewListOffsetsResponseTopic()
		rt.Topic = t.Topic
		for _, p := range t.Partitions {
			rp := kmsg.NewListOffsetsResponseTopicPartition()
			rp.Partition = p.Partition
			rp.ErrorCode = f.listErrCode
			rp.Offset = f.latest
			rt.Partitions = append(rt.Partitions, rp)
		}
		resp.Topics = append(resp.Topics, rt)
	}

	return resp, nil
}

func (f *fakeClient) AddConsumePartitions(partitions map[string]map[int32]kgo.Offset) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ps := range partitions {
		for _, o := range ps {
			f.assigned = append(f.assigned, o)
		}
	}
}

func (f *fakeClient) RemoveConsumePartitions(map[string][]int32) {
	f.mu.Lock()
	f.removes++
	f.mu.Unlock()
}

func (f *fakeClient) PollRecords(ctx context.Context, _ int) kgo.Fetches {
	select {
	case f.polling <- struct{}{}:
	default:
	}

	select {
	case <-ctx.Done():
		return kgo.NewErrFetch(ctx.Err())
	case <-f.closedCh:
		return kgo.NewErrFetch(kgo.ErrClientClosed)
	case err := <-f.fetchErr:
		return kgo.Fetches{{Topics: []kgo.FetchTopic{{
			Topic:      "t1",
			Partitions: []kgo.FetchPartition{{Partition: 0, Err: err}},
		}}}}
	case r := <-f.records:
		return kgo.Fetches{{Topics: []kgo.FetchTopic{{
			Topic: r.Topic,
			Partitions: []kgo.FetchPartition{{
				Partition:     r.Partition,
				HighWatermark: r.Offset + 1,
				Records:       []*kgo.Record{r},
			}},
		}}}}
	}
}

func (f *fakeClient) Close() {
	f.closes.Add(1)
	f.closeOnce.Do(func() {
		close(f.closedCh)
	})
}

func (f *fakeClient) push(topic string, offset int64, value string) {
	f.records <- &kgo.Record{
		Topic:     topic,
		Partition: 0,
		Offset:    offset,
		Value:     []byte(value),
	}
}

func (f *fakeClient) assignedOffsets() []kgo.Offset {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kgo.Offset(nil), f.assigned...)
}

// mapConfigurer serves the global section from an in-memory map.
type mapConfigurer map[string]any

func (m mapConfigurer) Has(name string) bool {
	_, ok := m[name]
	return ok
}

func (m mapConfigurer) UnmarshalKey(name string, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(m[name])
}
