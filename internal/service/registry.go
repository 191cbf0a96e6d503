package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gestia/sessiond/internal/adapters/activity"
	"github.com/gestia/sessiond/internal/observability/notify"
	"github.com/gestia/sessiond/internal/ports"
)

// RegistryOptions groups shared dependencies for all client sessions.
type RegistryOptions struct {
	Credentials ports.CredentialSource
	Mirror      ports.SessionMirror
	Broadcast   ports.Broadcaster
	Notices     notify.Sink
	Clock       clockwork.Clock
	Logger      *slog.Logger

	// BaseContext bounds broadcast subscriptions. It must outlive the
	// sessions, so it is the application context, never a request context:
	// a subscription tied to one request would die when that request
	// completes and the tab would miss every later invalidation signal.
	// Nil means context.Background.
	BaseContext context.Context

	IdleTimeout     time.Duration
	SessionTTL      time.Duration
	DiscardOnReload bool
}

// Registry owns one ClientSession per connected client instance (tab),
// keyed by instance ID. It is the app-lifetime object; individual sessions
// come and go with their tabs.
type Registry struct {
	opts RegistryOptions

	mu       sync.Mutex
	sessions map[string]*ClientSession
}

// ClientSession bundles the session manager, inactivity monitor, and
// activity source for one client instance.
type ClientSession struct {
	ClientID   string
	InstanceID string

	Manager  *SessionManager
	Monitor  *IdleMonitor
	Activity *activity.Hub
}

// NewRegistry constructs a Registry.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.Credentials == nil {
		return nil, errors.New("registry: credential source is required")
	}
	if opts.Mirror == nil {
		return nil, errors.New("registry: session mirror is required")
	}
	if opts.Broadcast == nil {
		return nil, errors.New("registry: broadcaster is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	return &Registry{
		opts:     opts,
		sessions: make(map[string]*ClientSession),
	}, nil
}

// Open creates (or returns) the ClientSession for an instance. The monitor
// is constructed but not started; it attaches when a session exists
// (successful Login or Restore). The subscription lives on the registry's
// base context, not on whatever call happened to open the session.
func (r *Registry) Open(clientID, instanceID string) (*ClientSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cs, ok := r.sessions[instanceID]; ok {
		return cs, nil
	}

	hub := activity.NewHub()
	cs := &ClientSession{
		ClientID:   clientID,
		InstanceID: instanceID,
		Activity:   hub,
	}

	manager, err := NewSessionManager(SessionManagerOptions{
		ClientID:        clientID,
		InstanceID:      instanceID,
		Credentials:     r.opts.Credentials,
		Mirror:          r.opts.Mirror,
		Broadcast:       r.opts.Broadcast,
		Notices:         r.opts.Notices,
		Clock:           r.opts.Clock,
		Logger:          r.opts.Logger,
		SessionTTL:      r.opts.SessionTTL,
		DiscardOnReload: r.opts.DiscardOnReload,
		// A remote invalidation tears the monitor down; a later login
		// starts a fresh epoch.
		OnInvalidated: func() { cs.Monitor.Stop() },
	})
	if err != nil {
		return nil, err
	}

	monitor, err := NewIdleMonitor(IdleMonitorOptions{
		Sessions: manager,
		Activity: hub,
		Notices:  r.opts.Notices,
		Clock:    r.opts.Clock,
		Logger:   r.opts.Logger,
		Timeout:  r.opts.IdleTimeout,
		ClientID: clientID,
	})
	if err != nil {
		return nil, err
	}

	cs.Manager = manager
	cs.Monitor = monitor

	if err := manager.Start(r.opts.BaseContext); err != nil {
		return nil, fmt.Errorf("start session manager: %w", err)
	}

	r.sessions[instanceID] = cs
	return cs, nil
}

// Get returns the ClientSession for an instance, if open.
func (r *Registry) Get(instanceID string) (*ClientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.sessions[instanceID]
	return cs, ok
}

// Close tears down one instance's session pair.
func (r *Registry) Close(instanceID string) {
	r.mu.Lock()
	cs, ok := r.sessions[instanceID]
	delete(r.sessions, instanceID)
	r.mu.Unlock()

	if ok {
		cs.Monitor.Stop()
		cs.Manager.Close()
	}
}

// CloseAll tears down every open session. Used at shutdown and in tests.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*ClientSession, 0, len(r.sessions))
	for _, cs := range r.sessions {
		all = append(all, cs)
	}
	r.sessions = make(map[string]*ClientSession)
	r.mu.Unlock()

	for _, cs := range all {
		cs.Monitor.Stop()
		cs.Manager.Close()
	}
}

// Login authenticates the instance and, on success, attaches the inactivity
// monitor.
func (cs *ClientSession) Login(ctx context.Context, email, password string) (bool, error) {
	ok, err := cs.Manager.Login(ctx, email, password)
	if err != nil || !ok {
		return ok, err
	}
	cs.Monitor.Start()
	return true, nil
}

// Logout terminates the session and detaches the monitor.
func (cs *ClientSession) Logout(ctx context.Context) error {
	cs.Monitor.Stop()
	return cs.Manager.Logout(ctx)
}

// Restore applies the restore-on-start policy and attaches the monitor when
// a session was adopted.
func (cs *ClientSession) Restore(ctx context.Context, nav NavigationKind) error {
	if err := cs.Manager.Restore(ctx, nav); err != nil {
		return err
	}
	if cs.Manager.Authenticated() {
		cs.Monitor.Start()
	}
	return nil
}
