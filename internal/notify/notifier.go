package notify

import (
	"context"
	"sync"
)

// Topics published by the simulation.
const (
	TopicSnapshot = "snapshot"
	TopicIncident = "incident"
)

// Publisher fans simulation updates out to whoever is listening.
type Publisher interface {
	Publish(ctx context.Context, topic string, v any)
}

// Noop is a no-op publisher.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) {}

// Multi publishes to every wrapped publisher in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, topic string, v any) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, topic, v)
		}
	}
}

// Message is a single published update.
type Message struct {
	Topic string
	Value any
}

// Recorder keeps everything it is given.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Publish(_ context.Context, topic string, v any) {
	r.mu.Lock()
	r.msgs = append(r.msgs, Message{Topic: topic, Value: v})
	r.mu.Unlock()
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}
