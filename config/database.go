package config

import (
	"fmt"
	"net/url"
)

// DBConfig contains PostgreSQL database configuration. The database is only
// used when AUTH_MODE=postgres.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"sessiond"`
	Password string `env:"PASSWORD"                envDefault:"sessiond"`
	Name     string `env:"NAME"                    envDefault:"sessiond"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// URL builds a pgx connection URL from the configured fields.
func (d *DBConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

// RedisConfig contains Redis configuration for the session mirror and the
// invalidation broadcast channel.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:""`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
}

// StoreMode selects the session mirror / broadcast backend.
type StoreMode string

const (
	// StoreModeMemory keeps sessions in process memory. Single-node only.
	StoreModeMemory StoreMode = "memory"
	// StoreModeRedis mirrors sessions through Redis so every node (and
	// every tab) observes the same state.
	StoreModeRedis StoreMode = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreMode.
func (s *StoreMode) UnmarshalText(text []byte) error {
	v := StoreMode(text)
	switch v {
	case StoreModeMemory, StoreModeRedis, "":
		*s = v
		return nil
	default:
		return fmt.Errorf("invalid StoreMode: %q (valid options: memory, redis)", string(text))
	}
}

// StoreConfig selects and tunes the session store backend.
type StoreConfig struct {
	// Mode picks the backend. Empty defers to the dev-mode default
	// (memory in dev, redis otherwise); Sanitize resolves it.
	Mode StoreMode `env:"SESSION_STORE" envDefault:""`

	// KeyPrefix namespaces mirror keys in Redis.
	KeyPrefix string `env:"SESSION_KEY_PREFIX" envDefault:"session:"`
}

// Sanitize applies guardrails to store configuration values.
func (s *StoreConfig) Sanitize() {
	if s.KeyPrefix == "" {
		s.KeyPrefix = "session:"
	}
}

// Resolve returns the effective mode given the dev flag.
func (s *StoreConfig) Resolve(isDev bool) StoreMode {
	if s.Mode != "" {
		return s.Mode
	}
	if isDev {
		return StoreModeMemory
	}
	return StoreModeRedis
}
