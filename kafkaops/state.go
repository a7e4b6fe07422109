package kafkaops

// State is the lifecycle position of a Subscription.
type State uint32

const (
	StateInit State = iota
	StateConnecting
	StateOffsetFetching
	// StateSubscribed means the latest offset is known and no receive is pending.
	StateSubscribed
	StateConsuming
	// StateDelivered means the last receive returned a message, the consumer is
	// closed and the connection stays open for the next receive.
	StateDelivered
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnecting:
		return "connecting"
	case StateOffsetFetching:
		return "offset_fetching"
	case StateSubscribed:
		return "subscribed"
	case StateConsuming:
		return "consuming"
	case StateDelivered:
		return "delivered"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// canUnsubscribe reports whether the offset was fetched and the connection is
// still owned by the subscription.
func (s State) canUnsubscribe() bool {
	switch s { //nolint:exhaustive
	case StateSubscribed, StateConsuming, StateDelivered:
		return true
	default:
		return false
	}
}

// canReceive reports whether a new consumer may be created.
func (s State) canReceive() bool {
	return s == StateSubscribed || s == StateDelivered
}
