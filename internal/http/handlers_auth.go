package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gestia/sessiond/internal/observability/metrics"
	"github.com/gestia/sessiond/internal/observability/statsd"
	"github.com/gestia/sessiond/internal/ports"
	"github.com/gestia/sessiond/internal/service"
)

// navigationHeader carries how the tab arrived at the app: "navigate" for a
// fresh visit, "reload" for a page refresh. It drives the restore policy.
const navigationHeader = "X-Navigation-Type"

// SessionHandlers provides HTTP handlers for the session lifecycle.
type SessionHandlers struct {
	IdleTimeout time.Duration
	Metrics     statsd.Sink
	Logger      *slog.Logger
}

func (h *SessionHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates the calling tab.
// POST /auth/login.
func (h *SessionHandlers) Login(w http.ResponseWriter, r *http.Request) {
	cs, ok := ClientSessionFromContext(r.Context())
	if !ok {
		writeNoSession(w)
		return
	}

	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_credentials",
			Err:     errors.New("email and password are required"),
		})
		return
	}

	start := time.Now()
	authenticated, err := cs.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		metrics.EmitLogin(h.Metrics, metrics.LoginMetric{
			Result: metrics.ResultError, Duration: time.Since(start), Err: err,
		})
		h.logger().ErrorContext(r.Context(), "login", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Err:     errors.New("could not verify credentials"),
		})
		return
	}
	if !authenticated {
		metrics.EmitLogin(h.Metrics, metrics.LoginMetric{
			Result: metrics.ResultDenied, Duration: time.Since(start),
		})
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "invalid_credentials",
			Err:     errors.New("email or password is incorrect"),
		})
		return
	}

	metrics.EmitLogin(h.Metrics, metrics.LoginMetric{
		Result: metrics.ResultSuccess, Duration: time.Since(start),
	})
	WriteJSON(w, http.StatusOK, h.sessionState(cs))
}

// Logout ends the session for every tab of this client.
// POST /auth/logout.
func (h *SessionHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	cs, ok := ClientSessionFromContext(r.Context())
	if !ok {
		writeNoSession(w)
		return
	}

	if err := cs.Logout(r.Context()); err != nil {
		h.logger().WarnContext(r.Context(), "logout", "error", err)
	}

	WriteJSON(w, http.StatusOK, h.sessionState(cs))
}

// Session reports the tab's current authentication state, first applying
// the restore-on-start policy based on the navigation type header.
// GET /auth/session.
func (h *SessionHandlers) Session(w http.ResponseWriter, r *http.Request) {
	cs, ok := ClientSessionFromContext(r.Context())
	if !ok {
		writeNoSession(w)
		return
	}

	nav := service.NavNavigate
	if raw := r.Header.Get(navigationHeader); raw != "" {
		if err := nav.UnmarshalText([]byte(raw)); err != nil {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_navigation_type",
				Err:     err,
			})
			return
		}
	}

	if err := cs.Restore(r.Context(), nav); err != nil {
		h.logger().ErrorContext(r.Context(), "restore session", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "restore_failed",
			Err:     errors.New("could not restore session"),
		})
		return
	}

	WriteJSON(w, http.StatusOK, h.sessionState(cs))
}

type activityRequest struct {
	Kind string `json:"kind"`
}

// Activity reports a user interaction signal, renewing the inactivity
// deadline. Unknown kinds are accepted and ignored so frontend and backend
// can evolve independently.
// POST /auth/activity.
func (h *SessionHandlers) Activity(w http.ResponseWriter, r *http.Request) {
	cs, ok := ClientSessionFromContext(r.Context())
	if !ok {
		writeNoSession(w)
		return
	}

	var req activityRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Kind == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_kind",
			Err:     errors.New("activity kind is required"),
		})
		return
	}

	cs.Activity.Report(ports.ActivityKind(req.Kind))
	w.WriteHeader(http.StatusNoContent)
}

// sessionState builds the JSON view of a tab's session the frontend keys
// its UI off of.
func (h *SessionHandlers) sessionState(cs *service.ClientSession) map[string]any {
	state := map[string]any{
		"authenticated": cs.Manager.Authenticated(),
		"loading":       cs.Manager.Loading(),
	}
	if h.IdleTimeout > 0 {
		state["idle_timeout_seconds"] = int(h.IdleTimeout.Seconds())
	}

	principal, ok := cs.Manager.Principal()
	if !ok {
		return state
	}
	state["user"] = map[string]any{
		"id":         principal.ID,
		"name":       principal.Name,
		"email":      principal.Email,
		"role":       principal.Role,
		"avatar_url": principal.AvatarURL,
	}
	return state
}

func writeNoSession(w http.ResponseWriter) {
	WriteError(w, ErrorParams{
		Code:    http.StatusInternalServerError,
		ErrCode: "no_client_session",
		Err:     errors.New("client session missing from request context"),
	})
}
