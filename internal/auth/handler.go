package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/folio-cms/folio/internal/platform/httpx"
	"github.com/folio-cms/folio/internal/rbac"
	"github.com/folio-cms/folio/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if fields := httpx.FieldErrors(h.validator.Struct(req)); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("authenticate", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	sess, err := h.sessionManager.Create(r.Context(), w, r, user.ID)
	if err != nil {
		h.logger.Error("create session", slog.Int64("user_id", user.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("user signed in", slog.Int64("user_id", user.ID))
	httpx.JSON(w, http.StatusOK, loginResponse{User: user, Token: sess.ID})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		var err error
		if sess, err = h.sessionManager.Load(r.Context(), r); err != nil {
			h.logger.Warn("load session", slog.Any("error", err))
		}
	}
	if err := h.sessionManager.Destroy(r.Context(), w, sess); err != nil {
		h.logger.Warn("remove session", slog.Any("error", err))
	}
	httpx.NoContent(w)
}

// MeHandler answers GET /api/me with the actor and a fresh permission snapshot.
type MeHandler struct {
	authz     rbac.Authorizer
	resources []string
}

// NewMeHandler constructs a MeHandler.
func NewMeHandler(authz rbac.Authorizer, resources []string) *MeHandler {
	return &MeHandler{authz: authz, resources: resources}
}

type meResponse struct {
	User        *rbac.Actor   `json:"user"`
	Permissions rbac.Snapshot `json:"permissions"`
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor := rbac.ActorFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, meResponse{
		User:        actor,
		Permissions: rbac.BuildSnapshot(r.Context(), h.authz, actor, h.resources),
	})
}
