// Package hub fans out job lifecycle notifications to embedding
// applications. Subscribers that stop draining are dropped rather than
// allowed to stall the engine.
package hub

import (
	"sync"
	"time"

	"github.com/felixonmars/watchexec/internal/event"
)

// Notification describes one job state transition.
type Notification struct {
	JobID string
	From  string
	To    string
	Exit  *event.ExitStatus
	At    time.Time
}

// Hub manages subscriptions. The zero value is not usable; call New.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan Notification
	next int
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[int]chan Notification)}
}

// Subscribe registers a new subscriber and returns its channel along with a
// cancel function. The channel is buffered; a subscriber that falls behind
// by more than the buffer is unsubscribed and its channel closed.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Notification, 64)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the notification to every subscriber.
func (h *Hub) Publish(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}

	h.mu.RLock()
	var slow []int
	for id, ch := range h.subs {
		select {
		case ch <- n:
		default:
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, id := range slow {
		if ch, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
	}
	h.mu.Unlock()
}

// Close unsubscribes everyone.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
