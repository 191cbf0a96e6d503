package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gestia/sessiond/internal/adapters/pgauth"
	domainauth "github.com/gestia/sessiond/internal/domain/auth"
	"github.com/gestia/sessiond/internal/observability/statsd"
	"github.com/gestia/sessiond/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Sessions *service.Registry

	// Users enables the user administration endpoints. Nil when the
	// credential backend is not Postgres.
	Users *pgauth.Source

	// IdleTimeout is surfaced to the frontend in session state responses.
	IdleTimeout time.Duration

	// Metrics receives login counters and timings. Optional.
	Metrics statsd.Sink

	CookieDomain string
	CookieSecure bool
	Logger       *slog.Logger
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	identity := WithClientSession(services.Sessions, IdentityOptions{
		CookieDomain: services.CookieDomain,
		CookieSecure: services.CookieSecure,
	})

	sessionHandlers := &SessionHandlers{
		IdleTimeout: services.IdleTimeout,
		Metrics:     services.Metrics,
		Logger:      logger,
	}
	mux.Handle("POST /auth/login", identity(http.HandlerFunc(sessionHandlers.Login)))
	mux.Handle("POST /auth/logout", identity(http.HandlerFunc(sessionHandlers.Logout)))
	mux.Handle("GET /auth/session", identity(http.HandlerFunc(sessionHandlers.Session)))
	mux.Handle("POST /auth/activity", Chain(
		http.HandlerFunc(sessionHandlers.Activity),
		identity, RequireAuth(),
	))

	if services.Users != nil {
		userHandlers := &UserHandlers{Svc: services.Users, Logger: logger}
		mux.Handle("POST /admin/users", Chain(
			http.HandlerFunc(userHandlers.Create),
			identity, RequireRole(domainauth.RoleAdmin),
		))
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return Chain(mux, Logging(logger), Recover(logger))
}
