package ports

// Package ports defines interfaces (hexagonal ports) for session-related
// behavior. Implementations live in internal/adapters; orchestration in
// internal/service.

import (
	"context"

	domainauth "github.com/gestia/sessiond/internal/domain/auth"
)

// CredentialSource verifies a credential pair against an identity backend.
// A mismatch is a normal negative outcome (false, nil), not an error; the
// error return is reserved for infrastructure failures.
type CredentialSource interface {
	// Verify checks email/password and, on match, returns the Principal
	// with the secret stripped.
	Verify(ctx context.Context, email, password string) (domainauth.Principal, bool, error)
}

// SessionMirror persists the session record shared by all instances (tabs)
// of one client. It stands in for the browser's per-device local storage.
type SessionMirror interface {
	Put(ctx context.Context, clientID string, sess domainauth.Session) error
	// Get returns ErrNoSession when no record exists for the client.
	// Malformed stored data is deleted and reported as ErrNoSession.
	Get(ctx context.Context, clientID string) (domainauth.Session, error)
	Delete(ctx context.Context, clientID string) error
}

// Broadcaster propagates session-invalidating signals between independently
// running instances sharing one mirror. Delivery is asynchronous and may be
// momentarily stale; observers are eventually consistent.
type Broadcaster interface {
	Publish(ctx context.Context, key, value string) error
	// Subscribe registers a handler for remote changes to key and returns
	// a cancel function that must be called on teardown.
	Subscribe(ctx context.Context, key string, handler func(value string)) (func(), error)
}

// ErrNoSession is returned by mirrors when no session record exists.
type noSessionError struct{}

func (noSessionError) Error() string { return "no session record" }

var ErrNoSession error = noSessionError{}
