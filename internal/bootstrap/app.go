package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/gestia/sessiond/internal/devseed"
	"github.com/gestia/sessiond/internal/migrate"
)

// Run wires the whole application and blocks until a shutdown signal
// arrives or a component fails.
func Run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := &ServiceDeps{Config: &cfg, Logger: logger}

	if NeedsDatabase(&cfg) {
		pool, dbErr := ConnectDB(ctx, cfg.Postgres, logger)
		if dbErr != nil {
			return dbErr
		}
		defer pool.Close()
		deps.DB = pool

		if cfg.Postgres.RunMigrationsOnStart {
			if migErr := migrate.Run(ctx, pool); migErr != nil {
				return migErr
			}
			logger.InfoContext(ctx, "database migrations applied")
		}

		if cfg.IsDev {
			if seedErr := devseed.Run(ctx, pool, logger); seedErr != nil {
				return seedErr
			}
		}
	}

	if NeedsRedis(&cfg) {
		client, redisErr := ConnectRedis(ctx, cfg.Redis, logger)
		if redisErr != nil {
			return redisErr
		}
		defer func() {
			if cerr := client.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
				logger.Warn("close redis client", "error", cerr)
			}
		}()
		deps.RedisClient = client
	}

	services, err := NewServices(ctx, deps)
	if err != nil {
		return err
	}
	defer services.Close()

	server := BuildHTTPServer(&HTTPServerConfig{
		Config:   &cfg,
		Services: services,
		Logger:   logger,
	})

	logger.InfoContext(ctx, "starting sessiond",
		"auth_mode", cfg.Auth.Mode,
		"store_mode", cfg.Store.Resolve(cfg.IsDev),
		"idle_timeout", cfg.Session.IdleTimeout(),
		"addr", cfg.HTTP.Addr,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ServeHTTP(gctx, server, &cfg, logger)
	})
	return g.Wait()
}
