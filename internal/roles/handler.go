package roles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/folio-cms/folio/internal/platform/httpx"
	"github.com/folio-cms/folio/internal/rbac"
)

// Handler manages role administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers role routes. Authorization happens in Service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
	r.Post("/", h.createRole)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.showRole)
		r.Put("/", h.updateRole)
		r.Delete("/", h.deleteRole)
		r.Post("/restore", h.restoreRole)
		r.Delete("/force", h.forceDeleteRole)
		r.Get("/grants", h.listGrants)
		r.Put("/grants/{resource}", h.putGrant)
		r.Delete("/grants/{resource}", h.deleteGrant)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	trashed, _ := strconv.ParseBool(r.URL.Query().Get("trashed"))
	roles, err := h.service.List(r.Context(), rbac.ActorFromContext(r.Context()), trashed)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.Create(r.Context(), rbac.ActorFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) showRole(w http.ResponseWriter, r *http.Request) {
	id, ok := roleID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.Get(r.Context(), rbac.ActorFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := roleID(w, r)
	if !ok {
		return
	}
	var req RoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.Update(r.Context(), rbac.ActorFromContext(r.Context()), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Delete)
}

func (h *Handler) restoreRole(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Restore)
}

func (h *Handler) forceDeleteRole(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.ForceDelete)
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	id, ok := roleID(w, r)
	if !ok {
		return
	}
	grants, err := h.service.Grants(r.Context(), rbac.ActorFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": grants})
}

func (h *Handler) putGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := roleID(w, r)
	if !ok {
		return
	}
	var req GrantRequest
	if !h.decode(w, r, &req) {
		return
	}
	grant, err := h.service.Grant(r.Context(), rbac.ActorFromContext(r.Context()), id, chi.URLParam(r, "resource"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grant)
}

func (h *Handler) deleteGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := roleID(w, r)
	if !ok {
		return
	}
	if err := h.service.Revoke(r.Context(), rbac.ActorFromContext(r.Context()), id, chi.URLParam(r, "resource")); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor *rbac.Actor, id int64) error) {
	id, ok := roleID(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), rbac.ActorFromContext(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if fields := httpx.FieldErrors(h.validate.Struct(dst)); fields != nil {
		httpx.ValidationProblem(w, fields)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var unknown *rbac.UnknownActionError
	switch {
	case errors.As(err, &unknown):
		fields := make(map[string]string, len(unknown.Actions))
		for _, a := range unknown.Actions {
			fields[string(a)] = "unknown action for " + unknown.Resource
		}
		httpx.ValidationProblem(w, fields)
		return
	case errors.Is(err, httpx.ErrNotFound), errors.Is(err, httpx.ErrValidation),
		errors.Is(err, httpx.ErrDuplicate), errors.Is(err, httpx.ErrForbidden):
	default:
		h.logger.Error("roles request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.ValidationProblem(w, map[string]string{"id": "must be a positive integer"})
		return 0, false
	}
	return id, true
}
