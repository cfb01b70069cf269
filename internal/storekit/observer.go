package storekit

import (
	"context"
	"sync"
)

// subscriberBuffer bounds how far a slow subscriber may lag before Publish blocks on it.
const subscriberBuffer = 32

type subscriber struct {
	ctx context.Context
	ch  chan ObserverEvent
}

// observerHub fans transaction events out to every live subscriber.
// Publish calls are serialized so all subscribers see events in the same order.
type observerHub struct {
	publishMu sync.Mutex // held for a whole Publish and while closing a subscriber

	mu     sync.Mutex
	nextID int
	subs   map[int]subscriber
}

func newObserverHub() *observerHub {
	return &observerHub{subs: make(map[int]subscriber)}
}

// Subscribe returns a channel of events published after the call.
// The channel is closed once ctx is done.
func (h *observerHub) Subscribe(ctx context.Context) <-chan ObserverEvent {
	ch := make(chan ObserverEvent, subscriberBuffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = subscriber{ctx: ctx, ch: ch}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.publishMu.Lock()
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		close(ch)
		h.publishMu.Unlock()
	}()

	return ch
}

// Publish delivers ev to every subscriber, waiting on each until it has room
// or has gone away.
func (h *observerHub) Publish(ev ObserverEvent) {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	h.mu.Lock()
	subs := make([]subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- ev:
		case <-s.ctx.Done():
		}
	}
}

// Subscribers reports how many subscriptions are live.
func (h *observerHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
