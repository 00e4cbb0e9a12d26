package hublifetime

import "context"

// BusHandler receives one payload published on topic. Handlers may be
// invoked concurrently from arbitrary worker contexts; implementations must
// tolerate that.
type BusHandler func(topic string, payload []byte)

// Bus is the thin abstraction over the pub/sub broker the distributed
// manager is backed by. Publish is fire-and-forget; the manager never
// assumes a publish succeeds beyond the broker's own contract and never
// retries at this layer. Subscribe delivers each published payload exactly
// once per subscription, per the broker's own guarantee.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler BusHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	UnsubscribeAll(ctx context.Context) error
}
