package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gestia/sessiond/internal/adapters/pgauth"
	domainauth "github.com/gestia/sessiond/internal/domain/auth"
)

// UserHandlers provides HTTP handlers for user administration. Only wired
// when AUTH_MODE=postgres; other credential backends manage users elsewhere.
type UserHandlers struct {
	Svc    *pgauth.Source
	Logger *slog.Logger
}

func (h *UserHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type createUserRequest struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url"`
}

// Create registers a new user.
// POST /admin/users.
func (h *UserHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_fields",
			Err:     errors.New("email and password are required"),
		})
		return
	}
	role := domainauth.Role(req.Role)
	if !role.Valid() {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_role",
			Err:     errors.New("role must be admin, manager, or salesperson"),
		})
		return
	}

	principal, err := h.Svc.CreateUser(r.Context(), pgauth.CreateUserParams{
		Email:     req.Email,
		Name:      req.Name,
		Password:  req.Password,
		Role:      role,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		if errors.Is(err, pgauth.ErrEmailTaken) {
			WriteError(w, ErrorParams{
				Code:    http.StatusConflict,
				ErrCode: "email_taken",
				Err:     err,
			})
			return
		}
		h.logger().ErrorContext(r.Context(), "create user", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "create_user_failed",
			Err:     errors.New("could not create user"),
		})
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"id":    principal.ID,
		"email": principal.Email,
		"name":  principal.Name,
		"role":  principal.Role,
	})
}
