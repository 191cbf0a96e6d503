package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAuthMode_UnmarshalText(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    AuthMode
		expectError bool
	}{
		{name: "static", input: "static", expected: AuthModeStatic},
		{name: "postgres", input: "postgres", expected: AuthModePostgres},
		{name: "oidc", input: "oidc", expected: AuthModeOIDC},
		{name: "uppercase is accepted", input: "OIDC", expected: AuthModeOIDC},
		{name: "unknown mode", input: "ldap", expectError: true},
		{name: "empty", input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mode AuthMode
			err := mode.UnmarshalText([]byte(tt.input))
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error for %q, got none", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mode != tt.expected {
				t.Errorf("got %q, want %q", mode, tt.expected)
			}
		})
	}
}

func TestStoreMode_UnmarshalText(t *testing.T) {
	var mode StoreMode
	if err := mode.UnmarshalText([]byte("redis")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mode != StoreModeRedis {
		t.Errorf("got %q, want %q", mode, StoreModeRedis)
	}
	if err := mode.UnmarshalText([]byte("etcd")); err == nil {
		t.Error("expected error for unknown store mode")
	}
}

func TestStoreConfig_Resolve(t *testing.T) {
	var s StoreConfig
	if got := s.Resolve(true); got != StoreModeMemory {
		t.Errorf("dev default: got %q, want %q", got, StoreModeMemory)
	}
	if got := s.Resolve(false); got != StoreModeRedis {
		t.Errorf("prod default: got %q, want %q", got, StoreModeRedis)
	}
	s.Mode = StoreModeMemory
	if got := s.Resolve(false); got != StoreModeMemory {
		t.Errorf("explicit mode: got %q, want %q", got, StoreModeMemory)
	}
}

func TestStaticAuthConfig_ParseUsers(t *testing.T) {
	tests := []struct {
		name        string
		input       []string
		expected    []StaticUser
		expectError bool
	}{
		{
			name:  "minimal entry",
			input: []string{"ada@example.com:secret:admin"},
			expected: []StaticUser{
				{Email: "ada@example.com", Password: "secret", Role: "admin"},
			},
		},
		{
			name:  "entry with display name",
			input: []string{"sam@example.com:pw:salesperson:Sam Seller"},
			expected: []StaticUser{
				{Email: "sam@example.com", Password: "pw", Role: "salesperson", Name: "Sam Seller"},
			},
		},
		{
			name:  "multiple entries with blanks",
			input: []string{"a@x.com:p:admin", "", "  ", "m@x.com:p:manager"},
			expected: []StaticUser{
				{Email: "a@x.com", Password: "p", Role: "admin"},
				{Email: "m@x.com", Password: "p", Role: "manager"},
			},
		},
		{
			name:     "no users",
			input:    nil,
			expected: []StaticUser{},
		},
		{
			name:        "missing role",
			input:       []string{"a@x.com:p"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := StaticAuthConfig{Users: tt.input}
			users, err := cfg.ParseUsers()
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(users, tt.expected) {
				t.Errorf("got %+v, want %+v", users, tt.expected)
			}
		})
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse defaults: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Mode != AuthModeStatic {
		t.Errorf("auth mode: got %q, want %q", cfg.Auth.Mode, AuthModeStatic)
	}
	if cfg.Session.IdleTimeoutMinutes != 10 {
		t.Errorf("idle timeout: got %d, want 10", cfg.Session.IdleTimeoutMinutes)
	}
	if cfg.Session.IdleTimeout() != 10*time.Minute {
		t.Errorf("idle timeout duration: got %s", cfg.Session.IdleTimeout())
	}
	if !cfg.Session.DiscardOnReload {
		t.Error("discard-on-reload should default to true")
	}
	if cfg.Session.TTL != 12*time.Hour {
		t.Errorf("session TTL: got %s, want 12h", cfg.Session.TTL)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http addr: got %q", cfg.HTTP.Addr)
	}
	if cfg.Store.KeyPrefix != "session:" {
		t.Errorf("key prefix: got %q", cfg.Store.KeyPrefix)
	}
}

func TestAppConfig_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_MODE", "postgres")
	t.Setenv("SESSION_IDLE_TIMEOUT_MINUTES", "1")
	t.Setenv("SESSION_DISCARD_ON_RELOAD", "false")
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("DB_NAME", "erp")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Mode != AuthModePostgres {
		t.Errorf("auth mode: got %q", cfg.Auth.Mode)
	}
	if cfg.Session.IdleTimeout() != time.Minute {
		t.Errorf("idle timeout: got %s", cfg.Session.IdleTimeout())
	}
	if cfg.Session.DiscardOnReload {
		t.Error("discard-on-reload should be off")
	}
	if cfg.Store.Resolve(false) != StoreModeMemory {
		t.Errorf("store mode: got %q", cfg.Store.Mode)
	}
	if cfg.Postgres.Name != "erp" {
		t.Errorf("db name: got %q", cfg.Postgres.Name)
	}
}

func TestSessionConfig_Sanitize(t *testing.T) {
	s := SessionConfig{IdleTimeoutMinutes: 0, TTL: -time.Hour}
	s.Sanitize()
	if s.IdleTimeoutMinutes != 1 {
		t.Errorf("idle timeout clamp: got %d", s.IdleTimeoutMinutes)
	}
	if s.TTL != 12*time.Hour {
		t.Errorf("ttl clamp: got %s", s.TTL)
	}
}

func TestDBConfig_URL(t *testing.T) {
	d := DBConfig{Host: "db", Port: 5433, User: "app", Password: "p w", Name: "erp", SSLMode: "require"}
	got := d.URL()
	want := "postgres://app:p%20w@db:5433/erp?sslmode=require"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
