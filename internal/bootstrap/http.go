package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gestia/sessiond/config"
	httpx "github.com/gestia/sessiond/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// BuildHTTPServer constructs the HTTP server without starting it.
func BuildHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil || cfg.Config == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler := httpx.NewRouter(httpx.RouterServices{
		Sessions:     cfg.Services.Registry,
		Users:        cfg.Services.Users,
		IdleTimeout:  cfg.Config.Session.IdleTimeout(),
		Metrics:      cfg.Services.Metrics,
		CookieDomain: cfg.Config.HTTP.CookieDomain,
		CookieSecure: cfg.Config.HTTP.CookieSecure,
		Logger:       logger,
	})

	return &http.Server{
		Addr:         cfg.Config.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Config.HTTP.ReadTimeout,
		WriteTimeout: cfg.Config.HTTP.WriteTimeout,
	}
}

// ServeHTTP runs the server until ctx is cancelled, then shuts it down
// within the configured grace period.
func ServeHTTP(ctx context.Context, server *http.Server, cfg *config.AppConfig, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Join(err, <-errCh)
	}
	return <-errCh
}
