package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atrium-hq/atrium/internal/observability"
	"github.com/atrium-hq/atrium/internal/platform/httpx"
)

// Handler wires the JSON endpoints for the authentication lifecycle.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	registry *Registry
	metrics  *observability.Metrics
	validate *validator.Validate
	secure   bool
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, registry *Registry, metrics *observability.Metrics, secure bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		registry: registry,
		metrics:  metrics,
		validate: validator.New(),
		secure:   secure,
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/password", h.handleChangePassword)
	r.Get("/me", h.handleMe)
}

type registerRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Roles     []string `json:"roles"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		// Shape failures get the same uniform response as credential
		// mismatches so the endpoint cannot be used to probe addresses.
		h.metrics.ObserveLogin("failure")
		httpx.Problem(w, http.StatusUnauthorized, "Authentication Failed", "")
		return
	}

	sess := NewSession()
	if err := h.service.Login(r.Context(), sess, req.Email, req.Password); err != nil {
		h.metrics.ObserveLogin("failure")
		httpx.RespondError(w, err)
		return
	}
	h.metrics.ObserveLogin("success")

	token := h.registry.Put(sess)
	http.SetCookie(w, h.sessionCookie(token, 0))

	user := sess.User()
	httpx.JSON(w, http.StatusOK, loginResponse{
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Roles:     sess.RoleNames(),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if err := h.service.Logout(r.Context(), sess); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		h.registry.Delete(cookie.Value)
	}
	http.SetCookie(w, h.sessionCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if sess == nil || !sess.IsAuthenticated() {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if !h.service.ChangePassword(r.Context(), sess, req.CurrentPassword, req.NewPassword) {
		httpx.Problem(w, http.StatusBadRequest, "Password Change Failed", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	Authenticated bool     `json:"authenticated"`
	Email         string   `json:"email,omitempty"`
	FirstName     string   `json:"first_name,omitempty"`
	LastName      string   `json:"last_name,omitempty"`
	Roles         []string `json:"roles,omitempty"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if sess == nil || !sess.IsAuthenticated() {
		httpx.JSON(w, http.StatusOK, meResponse{Authenticated: false})
		return
	}
	user := sess.User()
	httpx.JSON(w, http.StatusOK, meResponse{
		Authenticated: true,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Roles:         sess.RoleNames(),
	})
}

func (h *Handler) sessionCookie(token string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	}
}
