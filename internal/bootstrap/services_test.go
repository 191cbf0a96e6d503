package bootstrap

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestia/sessiond/config"
)

func staticConfig() *config.AppConfig {
	cfg := &config.AppConfig{
		IsDev: true,
		Auth: config.AuthConfig{
			Mode: config.AuthModeStatic,
			Static: config.StaticAuthConfig{
				Users: []string{"ada@example.com:admin-pass:admin:Ada Admin"},
			},
		},
	}
	cfg.Sanitize()
	return cfg
}

func TestNewServices_StaticMemory(t *testing.T) {
	deps := &ServiceDeps{Config: staticConfig(), Logger: slog.Default()}

	services, err := NewServices(context.Background(), deps)
	require.NoError(t, err)
	t.Cleanup(services.Registry.CloseAll)

	require.NotNil(t, services.Registry)
	require.NotNil(t, services.Credentials)
	assert.Nil(t, services.Users, "static mode has no user administration")

	// The wired source verifies the configured user end to end.
	principal, ok, err := services.Credentials.Verify(context.Background(), "ada@example.com", "admin-pass")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ada Admin", principal.Name)
}

func TestNewServices_MissingConfig(t *testing.T) {
	_, err := NewServices(context.Background(), nil)
	assert.Error(t, err)

	_, err = NewServices(context.Background(), &ServiceDeps{})
	assert.Error(t, err)
}

func TestNewServices_StaticWithoutUsers(t *testing.T) {
	cfg := &config.AppConfig{
		IsDev: true,
		Auth:  config.AuthConfig{Mode: config.AuthModeStatic},
	}
	cfg.Sanitize()

	_, err := NewServices(context.Background(), &ServiceDeps{Config: cfg})
	assert.Error(t, err)
}

func TestNewServices_PostgresRequiresDB(t *testing.T) {
	cfg := &config.AppConfig{
		IsDev: true,
		Auth:  config.AuthConfig{Mode: config.AuthModePostgres},
	}
	cfg.Sanitize()

	_, err := NewServices(context.Background(), &ServiceDeps{Config: cfg})
	assert.Error(t, err)
}

func TestNewServices_RedisStoreRequiresClient(t *testing.T) {
	cfg := staticConfig()
	cfg.Store.Mode = config.StoreModeRedis

	_, err := NewServices(context.Background(), &ServiceDeps{Config: cfg})
	assert.Error(t, err)
}

func TestNeedsDatabaseAndRedis(t *testing.T) {
	cfg := staticConfig()
	assert.False(t, NeedsDatabase(cfg))
	assert.False(t, NeedsRedis(cfg), "dev mode defaults to the memory store")

	cfg.Auth.Mode = config.AuthModePostgres
	assert.True(t, NeedsDatabase(cfg))

	cfg.IsDev = false
	assert.True(t, NeedsRedis(cfg), "prod defaults to the redis store")

	assert.False(t, NeedsDatabase(nil))
	assert.False(t, NeedsRedis(nil))
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("SESSION_IDLE_TIMEOUT_MINUTES", "5")
	t.Setenv("AUTH_MODE", "static")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Session.IdleTimeoutMinutes)
	assert.Equal(t, config.AuthModeStatic, cfg.Auth.Mode)
}
