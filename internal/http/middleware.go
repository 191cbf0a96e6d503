package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/gestia/sessiond/internal/domain/auth"
	"github.com/gestia/sessiond/internal/service"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityOptions tunes the client/instance identity middleware.
type IdentityOptions struct {
	// CookieDomain is set on the client identity cookie. Empty uses the
	// request domain.
	CookieDomain string

	// CookieSecure marks the cookie Secure regardless of how the request
	// arrived. When false, Secure still applies to TLS requests.
	CookieSecure bool
}

const (
	// clientCookie identifies the browser across tabs and restarts, the
	// way a localStorage scope would.
	clientCookie = "erp_client_id"

	// instanceHeader identifies one tab. Cookies are shared between tabs,
	// so the per-tab ID has to travel in a header; the frontend generates
	// it once per tab and sends it on every call.
	instanceHeader = "X-Instance-Id"

	clientCookieMaxAge = 365 * 24 * 3600
)

// WithClientSession resolves the calling tab's identity and attaches its
// ClientSession to the request context, opening one through the registry on
// first contact. A missing client cookie is minted on the fly; a missing
// instance header is a client bug and yields 400.
func WithClientSession(registry *service.Registry, opts IdentityOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientIDFromRequest(r)
			if clientID == "" {
				clientID = uuid.NewString()
				setClientCookie(w, r, clientID, opts)
			}

			instanceID := r.Header.Get(instanceHeader)
			if instanceID == "" {
				WriteError(w, ErrorParams{
					Code:    http.StatusBadRequest,
					ErrCode: "missing_instance",
					Err:     errors.New(instanceHeader + " header is required"),
				})
				return
			}

			cs, err := registry.Open(clientID, instanceID)
			if err != nil {
				WriteError(w, ErrorParams{
					Code:    http.StatusInternalServerError,
					ErrCode: "session_unavailable",
					Err:     err,
				})
				return
			}

			ctx := SetClientSession(r.Context(), cs)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth returns a middleware that requires an authenticated session.
// If the tab is not authenticated, it returns a 401 Unauthorized response.
func RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cs, ok := ClientSessionFromContext(r.Context())
			if !ok || !cs.Manager.Authenticated() {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole returns a middleware that requires one of the allowed roles.
// Admins pass regardless of the list. A missing session yields 401; an
// authenticated session without a permitted role yields 403.
func RequireRole(allowed ...domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cs, ok := ClientSessionFromContext(r.Context())
			if !ok || !cs.Manager.Authenticated() {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
				return
			}
			if !cs.Manager.HasPermission(allowed...) {
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIDFromRequest(r *http.Request) string {
	c, err := r.Cookie(clientCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func setClientCookie(w http.ResponseWriter, r *http.Request, clientID string, opts IdentityOptions) {
	isSecure := opts.CookieSecure || r.TLS != nil ||
		strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	http.SetCookie(w, &http.Cookie{
		Name:     clientCookie,
		Value:    clientID,
		Path:     "/",
		Domain:   opts.CookieDomain,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   clientCookieMaxAge,
	})
}

// Chain applies middlewares right to left, so the first listed runs first.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
