// Package notify carries user-facing notices from the session core to the
// presentation layer. The core only decides when a notice fires and what it
// means; rendering belongs to the consumer.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Notice kinds recognised by downstream sinks.
const (
	KindIdleWarning    = "idle_warning"
	KindSessionExpired = "session_expired"
	KindLoginFailed    = "login_failed"
	KindSessionRevoked = "session_revoked"
)

// Notice is a fire-and-forget user-visible notification.
type Notice struct {
	Kind       string
	Message    string
	ClientID   string
	OccurredAt time.Time
}

// Sink describes a destination capable of consuming notices.
type Sink interface {
	Send(ctx context.Context, n Notice) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, n Notice) error

// Send implements the Sink interface.
func (f SinkFunc) Send(ctx context.Context, n Notice) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

// SlogSink logs notices through a structured logger. It is the default sink
// when no presentation channel is wired.
type SlogSink struct {
	Logger *slog.Logger
}

// Send implements the Sink interface.
func (s SlogSink) Send(ctx context.Context, n Notice) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notice",
		slog.String("kind", n.Kind),
		slog.String("message", n.Message),
		slog.String("client_id", n.ClientID),
	)
	return nil
}

// Fanout sends each notice to every sink, returning the first error after
// attempting all of them.
type Fanout []Sink

// Send implements the Sink interface.
func (f Fanout) Send(ctx context.Context, n Notice) error {
	var first error
	for _, s := range f {
		if err := s.Send(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
