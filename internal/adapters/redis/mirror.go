// Package redis provides Redis-based implementations of the session mirror
// and broadcaster ports for multi-node deployments.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/gestia/sessiond/internal/domain/auth"
	"github.com/gestia/sessiond/internal/ports"
)

var _ ports.SessionMirror = (*Mirror)(nil)

const defaultSessionTTL = 12 * time.Hour

// Mirror is a Redis-backed session mirror. TTL follows the session's
// ExpiresAt when set, otherwise a fixed default.
type Mirror struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewMirror creates a Redis-backed session mirror.
func NewMirror(client redis.UniversalClient) *Mirror {
	return &Mirror{
		client: client,
		prefix: "session:",
		ttl:    defaultSessionTTL,
	}
}

// NewMirrorWithPrefix creates a mirror with a custom key prefix.
func NewMirrorWithPrefix(client redis.UniversalClient, prefix string) *Mirror {
	m := NewMirror(client)
	m.prefix = prefix
	return m
}

func (m *Mirror) Put(ctx context.Context, clientID string, sess domainauth.Session) error {
	if clientID == "" {
		return errors.New("client ID cannot be empty")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := m.ttl
	if !sess.ExpiresAt.IsZero() {
		ttl = time.Until(sess.ExpiresAt)
		if ttl <= 0 {
			return errors.New("session is expired")
		}
	}

	return m.client.Set(ctx, m.prefix+clientID, data, ttl).Err()
}

func (m *Mirror) Get(ctx context.Context, clientID string) (domainauth.Session, error) {
	if clientID == "" {
		return domainauth.Session{}, ports.ErrNoSession
	}

	key := m.prefix + clientID
	data, err := m.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ports.ErrNoSession
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal([]byte(data), &sess); unmarshalErr != nil {
		// Corrupted record: drop it and continue unauthenticated.
		if delErr := m.Delete(ctx, clientID); delErr != nil {
			return domainauth.Session{}, fmt.Errorf("drop corrupted session: %w", delErr)
		}
		return domainauth.Session{}, ports.ErrNoSession
	}

	// The Redis TTL normally handles expiry; records written without one
	// still need the check.
	if sess.Expired(time.Now()) {
		if delErr := m.Delete(ctx, clientID); delErr != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup expired session: %w", delErr)
		}
		return domainauth.Session{}, ports.ErrNoSession
	}

	return sess, nil
}

func (m *Mirror) Delete(ctx context.Context, clientID string) error {
	if clientID == "" {
		return nil // Nothing to delete
	}
	return m.client.Del(ctx, m.prefix+clientID).Err()
}

var _ ports.Broadcaster = (*Broadcaster)(nil)

// Broadcaster propagates session-invalidation signals through Redis pub/sub.
type Broadcaster struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewBroadcaster creates a Redis pub/sub broadcaster.
func NewBroadcaster(client redis.UniversalClient, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{client: client, logger: logger}
}

func (b *Broadcaster) Publish(ctx context.Context, key, value string) error {
	return b.client.Publish(ctx, key, value).Err()
}

// Subscribe listens on the given channel until the cancel function is called
// or ctx is done. Handler invocations happen on a dedicated goroutine, one
// message at a time.
func (b *Broadcaster) Subscribe(ctx context.Context, key string, handler func(value string)) (func(), error) {
	sub := b.client.Subscribe(ctx, key)

	// Force the subscription to be established before returning so callers
	// never miss a publish that follows Subscribe.
	if _, err := sub.Receive(ctx); err != nil {
		if closeErr := sub.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, fmt.Errorf("redis subscribe %q: %w", key, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg.Payload)
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		if err := sub.Close(); err != nil {
			b.logger.Warn("close redis subscription", "channel", key, "error", err)
		}
		<-done
	}
	return cancel, nil
}
