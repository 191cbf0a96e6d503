package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gestia/sessiond/internal/observability/notify"
	"github.com/gestia/sessiond/internal/ports"
)

const (
	// DefaultIdleTimeout is the total idle duration after which a session
	// is terminated.
	DefaultIdleTimeout = 10 * time.Minute

	// WarningLead is how long before expiry the warning notice fires. The
	// warning is suppressed entirely when the timeout does not exceed it.
	WarningLead = 2 * time.Minute

	// expiryGrace is the delay between the termination notice and the
	// actual logout, so the notice can render before the redirect.
	expiryGrace = 2 * time.Second
)

const (
	idleWarningMessage = "You will be logged out in 2 minutes due to inactivity"
	idleExpiredMessage = "Your session has expired due to inactivity"
)

// SessionTerminator is the slice of the session manager the monitor needs.
// The monitor never mutates the Principal directly; it only asks for
// termination.
type SessionTerminator interface {
	Logout(ctx context.Context) error
}

// IdleMonitorOptions groups dependencies for IdleMonitor.
type IdleMonitorOptions struct {
	Sessions SessionTerminator
	Activity ports.ActivitySource
	Notices  notify.Sink
	Clock    clockwork.Clock
	Logger   *slog.Logger

	// Timeout is the total idle duration. Zero means DefaultIdleTimeout.
	Timeout time.Duration

	// ClientID tags emitted notices.
	ClientID string
}

// IdleMonitor enforces a maximum idle duration on an authenticated session
// and warns before enforcing. The deadline is a sliding window: every
// qualifying activity signal cancels and reschedules the (warning, expiry)
// timer pair from the moment it is observed.
type IdleMonitor struct {
	opts IdleMonitorOptions

	mu          sync.Mutex
	warning     clockwork.Timer
	expiry      clockwork.Timer
	grace       clockwork.Timer
	unsubscribe func()
	running     bool
	expired     bool

	// gen identifies the live timer pair. Timer.Stop cannot unschedule a
	// callback that has already fired, so a callback from a pair that was
	// cancelled after firing carries a stale generation and must not act.
	gen uint64
}

// NewIdleMonitor constructs a monitor. Start attaches it once a session
// exists; Stop detaches it on logout or teardown.
func NewIdleMonitor(opts IdleMonitorOptions) (*IdleMonitor, error) {
	if opts.Sessions == nil {
		return nil, errors.New("idle: session terminator is required")
	}
	if opts.Activity == nil {
		return nil, errors.New("idle: activity source is required")
	}
	if opts.Notices == nil {
		opts.Notices = notify.SlogSink{Logger: opts.Logger}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultIdleTimeout
	}
	return &IdleMonitor{opts: opts}, nil
}

// Start subscribes to activity signals and schedules the first deadline.
// Starting an already-running monitor resets it, which also clears a prior
// expired state: a new session begins a fresh tracking epoch.
func (m *IdleMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelTimersLocked()
	m.expired = false
	if m.unsubscribe == nil {
		m.unsubscribe = m.opts.Activity.Subscribe(ports.QualifyingActivity, m.onActivity)
	}
	m.running = true
	m.scheduleLocked()
}

// Stop cancels outstanding timers and detaches from the activity source.
// It is safe to call repeatedly and on a never-started monitor.
func (m *IdleMonitor) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.running = false
	m.cancelTimersLocked()
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// onActivity renews the deadline. Signals arriving after expiry or after
// Stop are ignored; the session is already being torn down.
func (m *IdleMonitor) onActivity(kind ports.ActivityKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.expired {
		return
	}
	m.cancelTimersLocked()
	m.scheduleLocked()
	m.opts.Logger.Debug("idle deadline renewed", slog.String("activity", string(kind)))
}

// scheduleLocked arms the warning/expiry pair relative to now. Callers hold
// the mutex and have already cancelled the prior pair.
func (m *IdleMonitor) scheduleLocked() {
	m.gen++
	gen := m.gen
	if m.opts.Timeout > WarningLead {
		m.warning = m.opts.Clock.AfterFunc(m.opts.Timeout-WarningLead, func() { m.onWarning(gen) })
	}
	m.expiry = m.opts.Clock.AfterFunc(m.opts.Timeout, func() { m.onExpiry(gen) })
}

func (m *IdleMonitor) cancelTimersLocked() {
	if m.warning != nil {
		m.warning.Stop()
		m.warning = nil
	}
	if m.expiry != nil {
		m.expiry.Stop()
		m.expiry = nil
	}
	if m.grace != nil {
		m.grace.Stop()
		m.grace = nil
	}
}

func (m *IdleMonitor) onWarning(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.running || m.expired {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.sendNotice(notify.KindIdleWarning, idleWarningMessage)
}

func (m *IdleMonitor) onExpiry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.running || m.expired {
		m.mu.Unlock()
		return
	}
	m.expired = true
	// Let the termination notice render before forcing the logout.
	m.grace = m.opts.Clock.AfterFunc(expiryGrace, m.terminate)
	m.mu.Unlock()

	m.sendNotice(notify.KindSessionExpired, idleExpiredMessage)
}

func (m *IdleMonitor) terminate() {
	ctx := context.Background()
	if err := m.opts.Sessions.Logout(ctx); err != nil {
		m.opts.Logger.ErrorContext(ctx, "terminate idle session",
			slog.String("client_id", m.opts.ClientID),
			slog.Any("error", err),
		)
		return
	}
	m.opts.Logger.InfoContext(ctx, "idle session terminated",
		slog.String("client_id", m.opts.ClientID),
		slog.Duration("timeout", m.opts.Timeout),
	)
}

// Expired reports whether this monitoring epoch has reached the terminal
// expired state.
func (m *IdleMonitor) Expired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expired
}

func (m *IdleMonitor) sendNotice(kind, message string) {
	ctx := context.Background()
	n := notify.Notice{
		Kind:       kind,
		Message:    message,
		ClientID:   m.opts.ClientID,
		OccurredAt: m.opts.Clock.Now(),
	}
	if err := m.opts.Notices.Send(ctx, n); err != nil {
		m.opts.Logger.Warn("send notice", "kind", kind, "error", err)
	}
}

// Timeout returns the configured idle timeout.
func (m *IdleMonitor) Timeout() time.Duration { return m.opts.Timeout }

var _ fmt.Stringer = (*IdleMonitor)(nil)

// String describes the monitor state for logs.
func (m *IdleMonitor) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := "idle-tracking"
	switch {
	case m.expired:
		state = "expired"
	case !m.running:
		state = "stopped"
	}
	return fmt.Sprintf("IdleMonitor(%s, timeout=%s)", state, m.opts.Timeout)
}
