package httpx

import (
	"context"

	"github.com/gestia/sessiond/internal/service"
)

// clientSessionKey is an unexported context key type to avoid collisions
// across packages. Centralized in this file so all handlers/middleware use
// the same key.
type clientSessionKey struct{}

// SetClientSession returns a child context that carries the given client
// session. If cs is nil, the original ctx is returned unchanged.
func SetClientSession(ctx context.Context, cs *service.ClientSession) context.Context {
	if cs == nil {
		return ctx
	}
	return context.WithValue(ctx, clientSessionKey{}, cs)
}

// ClientSessionFromContext returns the client session from context and a
// boolean indicating presence.
func ClientSessionFromContext(ctx context.Context) (*service.ClientSession, bool) {
	if cs, ok := ctx.Value(clientSessionKey{}).(*service.ClientSession); ok && cs != nil {
		return cs, true
	}
	return nil, false
}
