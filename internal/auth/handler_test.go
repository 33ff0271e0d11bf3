package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/folio-cms/folio/internal/auth"
	"github.com/folio-cms/folio/internal/rbac"
	"github.com/folio-cms/folio/internal/shared"
	_ "github.com/folio-cms/folio/testing"
)

type stubRepo struct {
	user    *auth.User
	touched int
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, auth.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(_ context.Context, id int64) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, auth.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubRepo) TouchLogin(context.Context, int64) error {
	s.touched++
	return nil
}

func newAuthRouter(t *testing.T, repo auth.Repository) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	handler := auth.NewHandler(nil, auth.NewService(repo, nil), sessionManager)
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r, sessionManager
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginSuccessCreatesSession(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 4, Email: "user@test.local", Name: "User", PasswordHash: hashed(t, "correctpass")}}
	router, sessions := newAuthRouter(t, repo)

	rec := post(router, "/auth/login", `{"email":"User@test.local","password":"correctpass"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Equal(t, 1, repo.touched)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+body.Token)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, int64(4), sess.UserID)
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 4, Email: "user@test.local", PasswordHash: hashed(t, "correctpass")}}
	router, _ := newAuthRouter(t, repo)

	rec := post(router, "/auth/login", `{"email":"user@test.local","password":"wrongpass"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	rec = post(router, "/auth/login", `{"email":"nobody@test.local","password":"wrongpass"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, repo.touched)
}

func TestLoginValidation(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{})

	rec := post(router, "/auth/login", `{"email":"not-an-email","password":"short"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email")
	assert.Contains(t, rec.Body.String(), "Password")

	assert.Equal(t, http.StatusUnprocessableEntity, post(router, "/auth/login", `not json`).Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 4, Email: "user@test.local", PasswordHash: hashed(t, "correctpass")}}
	router, sessions := newAuthRouter(t, repo)

	login := post(router, "/auth/login", `{"email":"user@test.local","password":"correctpass"}`)
	require.Equal(t, http.StatusOK, login.Code)
	cookie := login.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	check := httptest.NewRequest(http.MethodGet, "/", nil)
	check.AddCookie(cookie)
	sess, err := sessions.Load(context.Background(), check)
	require.NoError(t, err)
	assert.Nil(t, sess)

	// Logging out twice is harmless.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type allowBlogView struct{}

func (allowBlogView) Allows(_ context.Context, actor *rbac.Actor, resource string, action rbac.Action, _ *rbac.Target) bool {
	return actor.Authenticated() && resource == rbac.ResourceBlog && action == rbac.ActionView
}

func TestMeHandler(t *testing.T) {
	h := auth.NewMeHandler(allowBlogView{}, []string{rbac.ResourceBlog, rbac.ResourceProject})
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(rbac.ContextWithActor(req.Context(), &rbac.Actor{ID: 5, Roles: []rbac.RoleRef{{ID: 2, Slug: "editor"}}}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		User        rbac.Actor    `json:"user"`
		Permissions rbac.Snapshot `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(5), body.User.ID)
	assert.True(t, body.Permissions.Can(rbac.ResourceBlog, rbac.ActionView))
	assert.False(t, body.Permissions.CanAny(rbac.ResourceProject))
}

func TestExists(t *testing.T) {
	svc := auth.NewService(&stubRepo{user: &auth.User{ID: 4}}, nil)
	ok, err := svc.Exists(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.Exists(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, ok)
}
