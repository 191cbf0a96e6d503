package activity

// Package activity provides the in-process activity source the HTTP layer
// feeds with interaction signals reported by the SPA.

import (
	"sort"
	"sync"

	"github.com/gestia/sessiond/internal/ports"
)

var _ ports.ActivitySource = (*Hub)(nil)

type subscription struct {
	kinds   map[ports.ActivityKind]struct{}
	handler func(ports.ActivityKind)
}

// Hub fans interaction signals out to subscribers. Report invokes handlers
// synchronously in registration order, so a monitor's reschedule completes
// before any later signal is observed.
type Hub struct {
	mu   sync.Mutex
	subs map[int]*subscription
	next int
}

// NewHub creates an empty activity hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscription)}
}

// Subscribe registers a handler for the given kinds. The returned function
// removes the subscription.
func (h *Hub) Subscribe(kinds []ports.ActivityKind, handler func(ports.ActivityKind)) func() {
	set := make(map[ports.ActivityKind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = &subscription{kinds: set, handler: handler}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// Report delivers one interaction signal to all matching subscribers.
// Unknown kinds are dropped.
func (h *Hub) Report(kind ports.ActivityKind) {
	if !ports.KnownActivity(kind) {
		return
	}

	h.mu.Lock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]func(ports.ActivityKind), 0, len(ids))
	for _, id := range ids {
		if _, ok := h.subs[id].kinds[kind]; ok {
			handlers = append(handlers, h.subs[id].handler)
		}
	}
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(kind)
	}
}
