package progress

import (
	"context"
	"sync"

	"media-variants/internal/metrics"
)

const subscriberBuffer = 16

// Hub is an in-process publisher that fans events out to channel
// subscribers. It backs the SSE endpoint: each connected client subscribes
// to one media channel and receives the marshaled event payloads. A
// subscriber that falls behind has events dropped rather than stalling the
// publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan []byte]struct{})}
}

// Subscribe registers a listener on channel. The returned cancel function
// removes the subscription and closes the event stream.
func (h *Hub) Subscribe(channel string) (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[chan []byte]struct{})
	}
	h.subs[channel][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[channel], ch)
			if len(h.subs[channel]) == 0 {
				delete(h.subs, channel)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Publish(_ context.Context, channel string, event any) error {
	data, err := marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	for ch := range h.subs[channel] {
		select {
		case ch <- data:
		default:
		}
	}
	h.mu.RUnlock()

	metrics.ProgressPublishTotal.WithLabelValues("ok").Inc()
	return nil
}

func (h *Hub) Close() error { return nil }

// Fanout publishes every event to all wrapped publishers, returning the
// first error seen. The hub and the broker publisher run side by side so
// local SSE clients and external consumers both get the stream.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, channel string, event any) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, channel, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f Fanout) Close() error {
	var first error
	for _, p := range f {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
