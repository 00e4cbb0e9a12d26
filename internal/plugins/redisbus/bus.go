package redisbus

import (
	"context"
	"sync"

	"github.com/A8-Moke/SignalR/hublifetime"
	"github.com/A8-Moke/SignalR/internal/config"

	"github.com/redis/go-redis/v9"
)

// Bus is a Redis Pub/Sub backed hublifetime.Bus. Each Subscribe opens its
// own *redis.PubSub and drains it on its own goroutine via Channel(); a
// second Subscribe on the same topic replaces the first subscription's
// handler and reuses nothing, matching the "last handler wins" behavior
// the manager's subscribe lifecycle assumes it never triggers twice for
// the same topic concurrently.
type Bus struct {
	rdb *redis.Client

	mu   sync.Mutex
	subs map[string]*subscription
}

type subscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// NewRedisClient connects to the broker and verifies it is reachable.
func NewRedisClient(ctx context.Context, cfg config.BusConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// New wraps an already-connected client.
func New(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb, subs: make(map[string]*subscription)}
}

func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.rdb.Publish(ctx, topic, payload).Err()
}

func (b *Bus) Subscribe(ctx context.Context, topic string, handler hublifetime.BusHandler) error {
	pubsub := b.rdb.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	subCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{pubsub: pubsub, cancel: cancel}

	b.mu.Lock()
	if old, ok := b.subs[topic]; ok {
		old.cancel()
		_ = old.pubsub.Close()
	}
	b.subs[topic] = sub
	b.mu.Unlock()

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg.Channel, []byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (b *Bus) Unsubscribe(ctx context.Context, topic string) error {
	b.mu.Lock()
	sub, ok := b.subs[topic]
	delete(b.subs, topic)
	b.mu.Unlock()
	if !ok {
		return nil
	}
	sub.cancel()
	return sub.pubsub.Close()
}

func (b *Bus) UnsubscribeAll(ctx context.Context) error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*subscription)
	b.mu.Unlock()
	var err error
	for _, sub := range subs {
		sub.cancel()
		if cerr := sub.pubsub.Close(); cerr != nil {
			err = cerr
		}
	}
	return err
}
