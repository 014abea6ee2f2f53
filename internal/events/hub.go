// Package events is a small typed pub/sub used to fan decoded readings and device
// state out to the dashboard, the exporter and the CLI.
package events

import "sync"

// hub is the listener bookkeeping shared by both event flavours. L is the listener
// representation, T the published value.
type hub[L any, T any] struct {
	mu        sync.RWMutex
	listeners map[uint64]L
	nextID    uint64
	replay    bool
	last      T
	hasLast   bool
}

func (h *hub[L, T]) init(replay bool) {
	h.listeners = make(map[uint64]L)
	h.replay = replay
}

// add registers l and returns its removal func plus the value to replay, if any.
func (h *hub[L, T]) add(l L) (remove func(), last T, replay bool) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = l
	last, replay = h.last, h.replay && h.hasLast
	h.mu.Unlock()

	var once sync.Once
	remove = func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
	return remove, last, replay
}

// publish records value and returns a snapshot of listeners to deliver to outside
// the lock.
func (h *hub[L, T]) publish(value T) []L {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.replay {
		h.last = value
		h.hasLast = true
	}
	snapshot := make([]L, 0, len(h.listeners))
	for _, l := range h.listeners {
		snapshot = append(snapshot, l)
	}
	return snapshot
}

func (h *hub[L, T]) lastValue() (T, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last, h.hasLast
}

func (h *hub[L, T]) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
