package hublifetime

import (
	"context"
	"errors"
	"sync"
)

type fakeConnection struct {
	id     string
	userID string

	features *FeatureBag

	mu        sync.Mutex
	writes    []*InvocationMessage
	failWrite bool
}

func newFakeConnection(id, userID string) *fakeConnection {
	return &fakeConnection{id: id, userID: userID, features: NewFeatureBag()}
}

func (f *fakeConnection) ConnectionID() string  { return f.id }
func (f *fakeConnection) UserID() string        { return f.userID }
func (f *fakeConnection) Features() *FeatureBag { return f.features }

func (f *fakeConnection) Write(ctx context.Context, msg *InvocationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return errors.New("fake connection: write failed")
	}
	f.writes = append(f.writes, msg)
	return nil
}

func (f *fakeConnection) Writes() []*InvocationMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*InvocationMessage, len(f.writes))
	copy(out, f.writes)
	return out
}

// fakeBus is an in-memory Bus that delivers published payloads to every
// subscriber of a topic synchronously, on the publishing goroutine. Several
// DistributedLifetimeManager instances share one fakeBus in tests to stand
// in for a fleet of servers behind one real broker, so a topic may carry
// more than one subscriber at a time.
type fakeBus struct {
	mu          sync.Mutex
	subscribers map[string][]BusHandler

	publishErr error
}

func newFakeBus() *fakeBus {
	return &fakeBus{subscribers: make(map[string][]BusHandler)}
}

func (b *fakeBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.mu.Lock()
	handlers := make([]BusHandler, len(b.subscribers[topic]))
	copy(handlers, b.subscribers[topic])
	b.mu.Unlock()
	for _, handler := range handlers {
		handler(topic, payload)
	}
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, topic string, handler BusHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], handler)
	return nil
}

func (b *fakeBus) Unsubscribe(ctx context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, topic)
	return nil
}

func (b *fakeBus) UnsubscribeAll(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string][]BusHandler)
	return nil
}
