package users

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-cms/folio/internal/rbac"
)

func newRouter(f *fixture) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.service)
	r := chi.NewRouter()
	r.Route("/api/users", h.MountRoutes)
	return r
}

func call(h http.Handler, actor *rbac.Actor, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(rbac.ContextWithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerListUsers(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	rec := call(router, f.admin, http.MethodGet, "/api/users/?per_page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Users, 2)
	assert.Equal(t, 5, page.Pagination.Total)

	assert.Equal(t, http.StatusForbidden, call(router, nil, http.MethodGet, "/api/users/", "").Code)
}

func TestHandlerSuperAdminRail(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	assert.Equal(t, http.StatusForbidden, call(router, f.admin, http.MethodDelete, "/api/users/1", "").Code)
	assert.Equal(t, http.StatusForbidden, call(router, f.admin, http.MethodDelete, "/api/users/1/force", "").Code)
	assert.Equal(t, http.StatusForbidden, call(router, f.admin, http.MethodPut, "/api/users/1/roles", `{"role_ids":[]}`).Code)
	assert.Equal(t, http.StatusNoContent, call(router, f.admin, http.MethodDelete, "/api/users/3", "").Code)
}

func TestHandlerSyncRoles(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	rec := call(router, f.admin, http.MethodPut, "/api/users/5/roles", `{"role_ids":[`+itoa(f.editor.ID)+`]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"editor"`)

	assert.Equal(t, http.StatusUnprocessableEntity, call(router, f.admin, http.MethodPut, "/api/users/5/roles", `{"role_ids":[0]}`).Code)
	assert.Equal(t, http.StatusNotFound, call(router, f.admin, http.MethodPut, "/api/users/5/roles", `{"role_ids":[999]}`).Code)
	assert.Equal(t, http.StatusNotFound, call(router, f.admin, http.MethodGet, "/api/users/77", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, call(router, f.admin, http.MethodGet, "/api/users/x", "").Code)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
