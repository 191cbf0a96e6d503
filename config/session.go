package config

import "time"

// SessionConfig contains session lifecycle and inactivity configuration.
type SessionConfig struct {
	// IdleTimeoutMinutes is the total idle duration before a session is
	// terminated. The warning fires two minutes before that, so values of
	// two minutes or less terminate without warning.
	IdleTimeoutMinutes int `env:"SESSION_IDLE_TIMEOUT_MINUTES" envDefault:"10"`

	// TTL is how long a mirrored session survives without any tab open.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"12h"`

	// DiscardOnReload forces re-authentication when a tab reloads instead
	// of restoring the mirrored session. Plain navigation always restores.
	DiscardOnReload bool `env:"SESSION_DISCARD_ON_RELOAD" envDefault:"true"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.IdleTimeoutMinutes < 1 {
		s.IdleTimeoutMinutes = 1
	}
	if s.TTL <= 0 {
		s.TTL = 12 * time.Hour
	}
}

// IdleTimeout returns the configured idle timeout as a duration.
func (s *SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutMinutes) * time.Minute
}
