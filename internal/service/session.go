package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	domainauth "github.com/gestia/sessiond/internal/domain/auth"
	"github.com/gestia/sessiond/internal/observability/notify"
	"github.com/gestia/sessiond/internal/ports"
)

// NavigationKind classifies how a client instance arrived at the application:
// a fresh navigation (new tab, external link) or a reload of an existing tab.
type NavigationKind string

const (
	NavNavigate NavigationKind = "navigate"
	NavReload   NavigationKind = "reload"
)

// UnmarshalText implements encoding.TextUnmarshaler for NavigationKind.
func (n *NavigationKind) UnmarshalText(text []byte) error {
	switch v := NavigationKind(text); v {
	case NavNavigate, NavReload:
		*n = v
		return nil
	default:
		return fmt.Errorf("invalid NavigationKind: %q (valid options: navigate, reload)", text)
	}
}

// DefaultSessionTTL is the absolute bound on a mirrored session.
const DefaultSessionTTL = 12 * time.Hour

// invalidationSignal is the payload published when a session is terminated.
// Origin lets instances of the same client ignore their own publishes, the
// way browser storage events fire only in other tabs.
type invalidationSignal struct {
	Origin string `json:"origin"`
	Reason string `json:"reason"`
}

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	// ClientID identifies the device/browser profile. All instances (tabs)
	// of one client share a mirror record and invalidation signals.
	ClientID string
	// InstanceID identifies this instance (tab) within the client.
	InstanceID string

	Credentials ports.CredentialSource
	Mirror      ports.SessionMirror
	Broadcast   ports.Broadcaster
	Notices     notify.Sink
	Clock       clockwork.Clock
	Logger      *slog.Logger

	// SessionTTL bounds the mirrored session absolutely. Zero means
	// DefaultSessionTTL.
	SessionTTL time.Duration

	// DiscardOnReload enables the re-authenticate-after-refresh policy:
	// Restore with NavReload drops the mirrored session instead of adopting
	// it.
	DiscardOnReload bool

	// OnInvalidated, when set, runs after the session is cleared by a
	// remote invalidation signal (another instance logged out or expired).
	OnInvalidated func()
}

// SessionManager is the single source of truth for "who is logged in" and
// "what may they do" for one client instance.
type SessionManager struct {
	opts SessionManagerOptions

	mu          sync.Mutex
	principal   *domainauth.Principal
	sessionID   string
	loading     bool
	loginSeq    uint64
	unsubscribe func()
	closed      bool
}

// NewSessionManager constructs a SessionManager. Call Start to begin
// observing cross-instance invalidation signals, and Close on teardown.
func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	if opts.ClientID == "" {
		return nil, errors.New("session: client ID is required")
	}
	if opts.InstanceID == "" {
		return nil, errors.New("session: instance ID is required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("session: credential source is required")
	}
	if opts.Mirror == nil {
		return nil, errors.New("session: session mirror is required")
	}
	if opts.Broadcast == nil {
		return nil, errors.New("session: broadcaster is required")
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
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	return &SessionManager{opts: opts}, nil
}

// invalidationKey is the broadcast key shared by all instances of a client.
func invalidationKey(clientID string) string {
	return "session:invalidated:" + clientID
}

// Start subscribes to invalidation signals from other instances of the same
// client. It must be called once before the manager is shared.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("session: manager is closed")
	}
	if m.unsubscribe != nil {
		return nil
	}

	cancel, err := m.opts.Broadcast.Subscribe(ctx, invalidationKey(m.opts.ClientID), m.onRemoteSignal)
	if err != nil {
		return fmt.Errorf("subscribe invalidation signals: %w", err)
	}
	m.unsubscribe = cancel
	return nil
}

// Close tears the manager down, cancelling the broadcast subscription.
// The mirror is left untouched: closing a tab does not log the user out.
func (m *SessionManager) Close() {
	m.mu.Lock()
	cancel := m.unsubscribe
	m.unsubscribe = nil
	m.closed = true
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Login verifies the credential pair and, on match, establishes the session
// and mirrors it. A mismatch returns (false, nil) and leaves any prior
// session untouched.
//
// Overlapping calls are safe: each call is tagged with a sequence number and
// only the most recently started call may apply its outcome, so a slow early
// call can never overwrite the result of a faster later one.
func (m *SessionManager) Login(ctx context.Context, email, password string) (bool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, errors.New("session: manager is closed")
	}
	m.loginSeq++
	seq := m.loginSeq
	m.loading = true
	m.mu.Unlock()

	principal, ok, err := m.opts.Credentials.Verify(ctx, email, password)

	m.mu.Lock()
	defer m.mu.Unlock()
	if seq == m.loginSeq {
		m.loading = false
	}
	if err != nil {
		return false, fmt.Errorf("verify credentials: %w", err)
	}
	if seq != m.loginSeq {
		// A later Login superseded this one; drop the stale outcome.
		return false, nil
	}

	if !ok {
		m.sendNotice(ctx, notify.KindLoginFailed, "Invalid email or password")
		return false, nil
	}

	now := m.opts.Clock.Now()
	sess := domainauth.Session{
		ID:        uuid.NewString(),
		Principal: principal,
		CreatedAt: now,
		ExpiresAt: now.Add(m.opts.SessionTTL),
	}
	if putErr := m.opts.Mirror.Put(ctx, m.opts.ClientID, sess); putErr != nil {
		return false, fmt.Errorf("mirror session: %w", putErr)
	}

	m.principal = &principal
	m.sessionID = sess.ID
	m.opts.Logger.InfoContext(ctx, "login",
		slog.String("client_id", m.opts.ClientID),
		slog.String("user_id", principal.ID),
		slog.String("role", string(principal.Role)),
	)
	return true, nil
}

// Logout clears the current Principal, removes the mirrored session, and
// signals other instances. Calling it while already logged out is a no-op.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.principal == nil {
		m.mu.Unlock()
		return nil
	}
	m.principal = nil
	m.sessionID = ""
	m.mu.Unlock()

	var errs []error
	if err := m.opts.Mirror.Delete(ctx, m.opts.ClientID); err != nil {
		errs = append(errs, fmt.Errorf("clear mirrored session: %w", err))
	}
	if err := m.publishInvalidation(ctx, "logout"); err != nil {
		errs = append(errs, err)
	}
	m.opts.Logger.InfoContext(ctx, "logout", slog.String("client_id", m.opts.ClientID))
	return errors.Join(errs...)
}

// Restore decides whether to trust a previously mirrored session. A reload,
// under the discard-on-reload policy, drops the mirror and starts
// unauthenticated; a fresh navigation adopts a valid mirrored session.
// Malformed or expired records are dropped silently.
func (m *SessionManager) Restore(ctx context.Context, nav NavigationKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("session: manager is closed")
	}
	if m.principal != nil {
		return nil
	}

	if nav == NavReload && m.opts.DiscardOnReload {
		if err := m.opts.Mirror.Delete(ctx, m.opts.ClientID); err != nil {
			return fmt.Errorf("discard mirrored session on reload: %w", err)
		}
		return nil
	}

	sess, err := m.opts.Mirror.Get(ctx, m.opts.ClientID)
	if err != nil {
		if errors.Is(err, ports.ErrNoSession) {
			return nil
		}
		return fmt.Errorf("read mirrored session: %w", err)
	}

	if sess.Expired(m.opts.Clock.Now()) || !sess.Principal.Role.Valid() {
		if delErr := m.opts.Mirror.Delete(ctx, m.opts.ClientID); delErr != nil {
			return fmt.Errorf("drop unusable mirrored session: %w", delErr)
		}
		return nil
	}

	principal := sess.Principal
	m.principal = &principal
	m.sessionID = sess.ID
	m.opts.Logger.InfoContext(ctx, "session restored",
		slog.String("client_id", m.opts.ClientID),
		slog.String("user_id", principal.ID),
	)
	return nil
}

// HasPermission reports whether the current Principal may access a resource
// restricted to the given roles. Admin passes every check; with no Principal
// the answer is always false.
func (m *SessionManager) HasPermission(allowed ...domainauth.Role) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.principal == nil {
		return false
	}
	return m.principal.Role.Permits(allowed...)
}

// Authenticated reports whether a Principal is present.
func (m *SessionManager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.principal != nil
}

// Loading reports whether a login call is in flight.
func (m *SessionManager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Principal returns a copy of the current Principal, if any.
func (m *SessionManager) Principal() (domainauth.Principal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.principal == nil {
		return domainauth.Principal{}, false
	}
	return *m.principal, true
}

// SessionID returns the opaque identifier of the current session, if any.
func (m *SessionManager) SessionID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID, m.sessionID != ""
}

func (m *SessionManager) publishInvalidation(ctx context.Context, reason string) error {
	payload, err := json.Marshal(invalidationSignal{Origin: m.opts.InstanceID, Reason: reason})
	if err != nil {
		return fmt.Errorf("marshal invalidation signal: %w", err)
	}
	if err := m.opts.Broadcast.Publish(ctx, invalidationKey(m.opts.ClientID), string(payload)); err != nil {
		return fmt.Errorf("publish invalidation signal: %w", err)
	}
	return nil
}

// onRemoteSignal clears the in-memory session when another instance of the
// same client invalidates it. The publisher already cleared the mirror; this
// instance only drops its own state.
func (m *SessionManager) onRemoteSignal(value string) {
	var sig invalidationSignal
	if err := json.Unmarshal([]byte(value), &sig); err != nil {
		m.opts.Logger.Warn("malformed invalidation signal", "error", err)
		return
	}
	if sig.Origin == m.opts.InstanceID {
		return
	}

	m.mu.Lock()
	wasAuthenticated := m.principal != nil
	m.principal = nil
	m.sessionID = ""
	callback := m.opts.OnInvalidated
	m.mu.Unlock()

	if !wasAuthenticated {
		return
	}
	m.sendNotice(context.Background(), notify.KindSessionRevoked,
		"Your session was ended in another window")
	if callback != nil {
		callback()
	}
}

func (m *SessionManager) sendNotice(ctx context.Context, kind, message string) {
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
