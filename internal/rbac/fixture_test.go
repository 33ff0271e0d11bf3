package rbac_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/folio-cms/folio/internal/rbac"
	"github.com/folio-cms/folio/internal/rbac/rbactest"
)

type fixture struct {
	store    *rbactest.MemStore
	service  *rbac.Service
	resolver *rbac.Resolver
	admin    rbac.Role
	editor   rbac.Role
	viewer   rbac.Role
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, cacheTTL time.Duration) *fixture {
	t.Helper()
	ctx := context.Background()
	store := rbactest.NewMemStore()
	svc := rbac.NewService(store, rbac.ServiceOptions{
		Cache:  rbac.NewGrantCache(64, cacheTTL, nil),
		Logger: quietLogger(),
	})
	require.NoError(t, svc.EnsureDefaultVocabulary(ctx))

	admin, err := svc.CreateRole(ctx, rbac.RoleInput{Name: "Admin"})
	require.NoError(t, err)
	editor, err := svc.CreateRole(ctx, rbac.RoleInput{Name: "Editor"})
	require.NoError(t, err)
	viewer, err := svc.CreateRole(ctx, rbac.RoleInput{Name: "Viewer"})
	require.NoError(t, err)

	_, err = svc.Grant(ctx, editor.ID, rbac.ResourceBlog, []string{"viewAny", "view", "create", "update"})
	require.NoError(t, err)
	_, err = svc.Grant(ctx, viewer.ID, rbac.ResourceBlog, []string{"viewAny", "view"})
	require.NoError(t, err)
	_, err = svc.Grant(ctx, viewer.ID, rbac.ResourceProject, []string{"viewAny"})
	require.NoError(t, err)

	return &fixture{
		store:    store,
		service:  svc,
		resolver: rbac.NewResolver(svc, quietLogger(), nil),
		admin:    admin,
		editor:   editor,
		viewer:   viewer,
	}
}

func (f *fixture) actor(t *testing.T, userID int64, roles ...rbac.Role) *rbac.Actor {
	t.Helper()
	ids := make([]int64, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	_, err := f.service.SyncUserRoles(context.Background(), userID, ids)
	require.NoError(t, err)
	actor, err := f.service.LoadActor(context.Background(), userID)
	require.NoError(t, err)
	return actor
}
