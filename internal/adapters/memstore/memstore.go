package memstore

// Package memstore provides in-process implementations of the session mirror
// and broadcaster ports. It stands in for the browser's local storage and its
// storage-change events: single-node deployments and tests use it directly;
// production multi-node deployments use the redis adapter instead.

import (
	"context"
	"sync"

	domainauth "github.com/gestia/sessiond/internal/domain/auth"
	"github.com/gestia/sessiond/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionMirror = (*Mirror)(nil)
	_ ports.Broadcaster   = (*Hub)(nil)
)

// Mirror is an in-memory session mirror keyed by client ID.
type Mirror struct {
	mu       sync.RWMutex
	sessions map[string]domainauth.Session
}

// NewMirror creates an empty in-memory mirror.
func NewMirror() *Mirror {
	return &Mirror{sessions: make(map[string]domainauth.Session)}
}

func (m *Mirror) Put(_ context.Context, clientID string, sess domainauth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[clientID] = sess
	return nil
}

func (m *Mirror) Get(_ context.Context, clientID string) (domainauth.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[clientID]
	if !ok {
		return domainauth.Session{}, ports.ErrNoSession
	}
	return sess, nil
}

func (m *Mirror) Delete(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, clientID)
	return nil
}

// Hub is an in-process broadcaster. Publish delivers to subscribers on a
// separate goroutine, matching the asynchronous delivery of browser storage
// events and of the redis adapter.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[int]func(string)
	next int
}

// NewHub creates an empty broadcast hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]func(string))}
}

func (h *Hub) Publish(_ context.Context, key, value string) error {
	h.mu.Lock()
	handlers := make([]func(string), 0, len(h.subs[key]))
	for _, fn := range h.subs[key] {
		handlers = append(handlers, fn)
	}
	h.mu.Unlock()

	go func() {
		for _, fn := range handlers {
			fn(value)
		}
	}()
	return nil
}

func (h *Hub) Subscribe(_ context.Context, key string, handler func(value string)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[key] == nil {
		h.subs[key] = make(map[int]func(string))
	}
	id := h.next
	h.next++
	h.subs[key][id] = handler

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[key], id)
		if len(h.subs[key]) == 0 {
			delete(h.subs, key)
		}
	}
	return cancel, nil
}
