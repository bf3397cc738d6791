// Package realtime provides the best-effort broadcast hub for reaction
// state changes. Delivery is unordered across observers, never persisted,
// and never replayed: an observer connecting after an event sees only the
// next one.
package realtime

import "sync"

// ReactionEvent is the payload broadcast after a reaction mutation commits.
// Members is populated only when the deployment opts into member-level
// payloads; by default only derived counts leave the process.
type ReactionEvent struct {
	PostID    uint                `json:"post_id"`
	Reactions map[string]int      `json:"reactions"`
	Members   map[string][]string `json:"members,omitempty"`
}

// Hub fans events out to all subscribed observers. It is constructed once
// at process start, injected into request handlers, and closed on
// shutdown. Publish never blocks: observers that cannot keep up skip
// events instead of stalling the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan ReactionEvent]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: map[chan ReactionEvent]struct{}{}}
}

// Subscribe registers an observer and returns its event channel together
// with a cancel function. Cancel is idempotent and must be called when the
// observer disconnects.
func (h *Hub) Subscribe() (<-chan ReactionEvent, func()) {
	ch := make(chan ReactionEvent, 16)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish broadcasts an event to all current observers. Fire-and-forget:
// a full observer buffer drops the event for that observer only.
func (h *Hub) Publish(ev ReactionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports the number of connected observers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close tears the hub down. Subsequent publishes are no-ops and all
// observer channels are closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
