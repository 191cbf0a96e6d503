package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/gestia/sessiond/config"
	"github.com/gestia/sessiond/internal/adapters/memstore"
	"github.com/gestia/sessiond/internal/adapters/oidcauth"
	"github.com/gestia/sessiond/internal/adapters/pgauth"
	redisadapter "github.com/gestia/sessiond/internal/adapters/redis"
	"github.com/gestia/sessiond/internal/adapters/staticauth"
	domainauth "github.com/gestia/sessiond/internal/domain/auth"
	"github.com/gestia/sessiond/internal/observability/metrics"
	"github.com/gestia/sessiond/internal/observability/notify"
	"github.com/gestia/sessiond/internal/observability/statsd"
	"github.com/gestia/sessiond/internal/ports"
	"github.com/gestia/sessiond/internal/service"
)

// ServiceDeps holds the shared infrastructure handed to service construction.
type ServiceDeps struct {
	Config *config.AppConfig

	// DB is only connected when AUTH_MODE=postgres.
	DB *pgxpool.Pool

	// RedisClient is only connected when the store mode resolves to redis.
	RedisClient goredis.UniversalClient

	Logger *slog.Logger
}

// ServiceContainer bundles the constructed service layer.
type ServiceContainer struct {
	Registry    *service.Registry
	Credentials ports.CredentialSource

	// Users is non-nil only for the Postgres credential backend.
	Users *pgauth.Source

	// Metrics is the StatsD client; disabled (no-op) unless configured.
	Metrics *statsd.Client
}

// NewServices wires credential source, session backends, and the registry.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("bootstrap: config is required")
	}
	cfg := deps.Config

	var container ServiceContainer

	credentials, users, err := buildCredentialSource(ctx, deps)
	if err != nil {
		return container, err
	}
	container.Credentials = credentials
	container.Users = users

	mirror, broadcaster, err := buildSessionBackends(deps)
	if err != nil {
		return container, err
	}

	statsdClient, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.MetricsEnabled,
		Address: cfg.Observability.StatsdAddress,
		Prefix:  cfg.Observability.StatsdPrefix,
		Logger:  deps.Logger,
	})
	if err != nil {
		return container, fmt.Errorf("statsd client: %w", err)
	}
	container.Metrics = statsdClient

	registry, err := service.NewRegistry(service.RegistryOptions{
		// The application context, so broadcast subscriptions survive the
		// requests that open them and die with the process.
		BaseContext: ctx,
		Credentials: credentials,
		Mirror:      mirror,
		Broadcast:   broadcaster,
		Notices: notify.Fanout{
			notify.SlogSink{Logger: deps.Logger},
			metrics.NoticeSink{Sink: statsdClient},
		},
		Logger:          deps.Logger,
		IdleTimeout:     cfg.Session.IdleTimeout(),
		SessionTTL:      cfg.Session.TTL,
		DiscardOnReload: cfg.Session.DiscardOnReload,
	})
	if err != nil {
		return container, fmt.Errorf("build session registry: %w", err)
	}
	container.Registry = registry

	return container, nil
}

// Close tears down the service layer in dependency order.
func (c ServiceContainer) Close() {
	if c.Registry != nil {
		c.Registry.CloseAll()
	}
	if err := c.Metrics.Close(); err != nil {
		slog.Warn("close statsd client", "error", err)
	}
}

// buildCredentialSource picks the credential backend from AUTH_MODE.
func buildCredentialSource(ctx context.Context, deps *ServiceDeps) (ports.CredentialSource, *pgauth.Source, error) {
	cfg := deps.Config

	switch cfg.Auth.Mode {
	case config.AuthModeStatic:
		entries, err := cfg.Auth.Static.ParseUsers()
		if err != nil {
			return nil, nil, fmt.Errorf("static auth users: %w", err)
		}
		users := make([]staticauth.User, 0, len(entries))
		for _, e := range entries {
			users = append(users, staticauth.User{
				Name:     e.Name,
				Email:    e.Email,
				Password: e.Password,
				Role:     domainauth.Role(e.Role),
			})
		}
		source, err := staticauth.NewSource(users)
		if err != nil {
			return nil, nil, fmt.Errorf("static auth: %w", err)
		}
		return source, nil, nil

	case config.AuthModePostgres:
		if deps.DB == nil {
			return nil, nil, errors.New("postgres auth requires a database connection")
		}
		source, err := pgauth.NewSource(deps.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres auth: %w", err)
		}
		return source, source, nil

	case config.AuthModeOIDC:
		source, err := oidcauth.NewSource(ctx, oidcauth.Config{
			ClientID:     cfg.Auth.OIDC.ClientID,
			ClientSecret: cfg.Auth.OIDC.ClientSecret,
			IssuerURL:    cfg.Auth.OIDC.IssuerURL,
			Scope:        cfg.Auth.OIDC.Scope,
			RoleExpr:     cfg.Auth.OIDC.RoleExpression,
			NameExpr:     cfg.Auth.OIDC.NameExpression,
			AvatarExpr:   cfg.Auth.OIDC.AvatarExpression,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("oidc auth: %w", err)
		}
		return source, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}

// buildSessionBackends picks the mirror and broadcaster from the resolved
// store mode.
func buildSessionBackends(deps *ServiceDeps) (ports.SessionMirror, ports.Broadcaster, error) {
	cfg := deps.Config

	switch mode := cfg.Store.Resolve(cfg.IsDev); mode {
	case config.StoreModeMemory:
		return memstore.NewMirror(), memstore.NewHub(), nil

	case config.StoreModeRedis:
		if deps.RedisClient == nil {
			return nil, nil, errors.New("redis store requires a redis connection")
		}
		mirror := redisadapter.NewMirrorWithPrefix(deps.RedisClient, cfg.Store.KeyPrefix)
		broadcaster := redisadapter.NewBroadcaster(deps.RedisClient, deps.Logger)
		return mirror, broadcaster, nil

	default:
		return nil, nil, fmt.Errorf("unknown store mode %q", mode)
	}
}

// NeedsDatabase reports whether the configuration requires PostgreSQL.
func NeedsDatabase(cfg *config.AppConfig) bool {
	return cfg != nil && cfg.Auth.Mode == config.AuthModePostgres
}

// NeedsRedis reports whether the configuration requires Redis.
func NeedsRedis(cfg *config.AppConfig) bool {
	return cfg != nil && cfg.Store.Resolve(cfg.IsDev) == config.StoreModeRedis
}
