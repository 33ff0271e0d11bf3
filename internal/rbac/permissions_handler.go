package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/folio-cms/folio/internal/platform/httpx"
)

// PermissionsHandler exposes vocabulary management, the permission snapshot
// and ad-hoc decision checks.
type PermissionsHandler struct {
	logger    *slog.Logger
	service   *Service
	authz     Authorizer
	rbac      Middleware
	resources []string
	validate  *validator.Validate
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, authz Authorizer, rbac Middleware, resources []string) *PermissionsHandler {
	return &PermissionsHandler{
		logger:    logger,
		service:   service,
		authz:     authz,
		rbac:      rbac,
		resources: resources,
		validate:  validator.New(),
	}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/snapshot", h.snapshot)
	r.Get("/check", h.check)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(ResourcePermission, ActionViewAny))
		r.Get("/", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(ResourcePermission, ActionUpdate))
		r.Put("/{resource}", h.definePermission)
	})
}

type definePermissionRequest struct {
	Actions     []string `json:"actions" validate:"required,min=1,dive,required,alpha,max=64"`
	Description string   `json:"description" validate:"max=255"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *PermissionsHandler) definePermission(w http.ResponseWriter, r *http.Request) {
	var req definePermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if fields := httpx.FieldErrors(h.validate.Struct(req)); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	perm, err := h.service.DefinePermission(r.Context(), chi.URLParam(r, "resource"), req.Actions, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *PermissionsHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, BuildSnapshot(r.Context(), h.authz, actor, h.resources))
}

type checkResponse struct {
	Resource string `json:"resource"`
	Action   Action `json:"action"`
	Allowed  bool   `json:"allowed"`
}

// check answers whether the current actor may perform an action, optionally
// against an instance described by target_id, owner_id and trashed.
func (h *PermissionsHandler) check(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resource := strings.TrimSpace(q.Get("resource"))
	action, ok := ParseAction(q.Get("action"))
	if resource == "" || !ok {
		httpx.ValidationProblem(w, map[string]string{"resource": "required", "action": "required, letters only"})
		return
	}
	target, err := parseTarget(q.Get("target_id"), q.Get("owner_id"), q.Get("trashed"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	allowed := h.authz.Allows(r.Context(), ActorFromContext(r.Context()), resource, action, target)
	httpx.JSON(w, http.StatusOK, checkResponse{Resource: resource, Action: action, Allowed: allowed})
}

func parseTarget(rawID, rawOwner, rawTrashed string) (*Target, error) {
	if rawID == "" && rawOwner == "" && rawTrashed == "" {
		return nil, nil
	}
	var t Target
	var err error
	if rawID != "" {
		if t.ID, err = strconv.ParseInt(rawID, 10, 64); err != nil {
			return nil, errors.Join(ErrInvalidInput, errors.New("target_id must be an integer"))
		}
	}
	if rawOwner != "" {
		if t.OwnerID, err = strconv.ParseInt(rawOwner, 10, 64); err != nil {
			return nil, errors.Join(ErrInvalidInput, errors.New("owner_id must be an integer"))
		}
	}
	if rawTrashed != "" {
		if t.Trashed, err = strconv.ParseBool(rawTrashed); err != nil {
			return nil, errors.Join(ErrInvalidInput, errors.New("trashed must be a boolean"))
		}
	}
	return &t, nil
}
