package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-cms/folio/internal/policy"
	"github.com/folio-cms/folio/internal/rbac"
	"github.com/folio-cms/folio/internal/rbac/rbactest"
	"github.com/folio-cms/folio/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	users map[int64]*User
}

func newMockRepository(ids ...int64) *mockRepository {
	m := &mockRepository{users: make(map[int64]*User)}
	for _, id := range ids {
		m.users[id] = &User{ID: id, Name: fmt.Sprintf("User %d", id), Email: fmt.Sprintf("u%d@example.com", id)}
	}
	return m
}

func (m *mockRepository) ListUsers(_ context.Context, f ListFilters, limit, offset int) ([]User, int, error) {
	var all []User
	for _, u := range m.users {
		if u.Trashed() != f.Trashed {
			continue
		}
		if f.Search != "" && !strings.Contains(u.Name, f.Search) {
			continue
		}
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockRepository) GetUser(_ context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

func (m *mockRepository) SoftDeleteUser(_ context.Context, id int64) error {
	u, ok := m.users[id]
	if !ok || u.Trashed() {
		return ErrNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

func (m *mockRepository) RestoreUser(_ context.Context, id int64) error {
	u, ok := m.users[id]
	if !ok || !u.Trashed() {
		return ErrNotFound
	}
	u.DeletedAt = nil
	return nil
}

func (m *mockRepository) ForceDeleteUser(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// ============================================================================
// FIXTURE
// ============================================================================

type auditTrail struct {
	entries []shared.AuditLog
	fail    error
}

func (a *auditTrail) Record(_ context.Context, log shared.AuditLog) error {
	if a.fail != nil {
		return a.fail
	}
	a.entries = append(a.entries, log)
	return nil
}

type fixture struct {
	audit   *auditTrail
	repo    *mockRepository
	core    *rbac.Service
	service *Service
	admin   *rbac.Actor
	editor  rbac.Role
	adminID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	core := rbac.NewService(rbactest.NewMemStore(), rbac.ServiceOptions{Logger: logger})
	require.NoError(t, core.EnsureDefaultVocabulary(ctx))
	adminRole, err := core.CreateRole(ctx, rbac.RoleInput{Name: "Admin"})
	require.NoError(t, err)
	editor, err := core.CreateRole(ctx, rbac.RoleInput{Name: "Editor"})
	require.NoError(t, err)
	require.NoError(t, core.AssignRole(ctx, 2, adminRole.ID))
	admin, err := core.LoadActor(ctx, 2)
	require.NoError(t, err)

	repo := newMockRepository(1, 2, 3, 4, 5)
	gate := policy.NewGate(policy.DefaultRegistry(), rbac.NewResolver(core, logger, nil), logger)
	trail := &auditTrail{}
	return &fixture{
		audit:   trail,
		repo:    repo,
		core:    core,
		service: NewService(repo, core, gate, trail, logger),
		admin:   admin,
		editor:  editor,
		adminID: adminRole.ID,
	}
}

// ============================================================================
// TESTS
// ============================================================================

func TestListUsersPaginates(t *testing.T) {
	f := newFixture(t)
	page, err := f.service.ListUsers(context.Background(), f.admin, ListFilters{Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, page.Users, 2)
	assert.Equal(t, int64(3), page.Users[0].ID)
	assert.Equal(t, 5, page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.TotalPages)

	page, err = f.service.ListUsers(context.Background(), f.admin, ListFilters{Page: 9})
	require.NoError(t, err)
	assert.NotNil(t, page.Users)
	assert.Empty(t, page.Users)
}

func TestListUsersRequiresViewAny(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.ListUsers(context.Background(), nil, ListFilters{})
	assert.True(t, errors.Is(err, rbac.ErrForbidden))
	_, err = f.service.ListUsers(context.Background(), &rbac.Actor{ID: 4}, ListFilters{})
	assert.True(t, errors.Is(err, rbac.ErrForbidden))
}

func TestSuperAdminIsProtectedFromAdmins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, errors.Is(f.service.DeleteUser(ctx, f.admin, rbac.SuperAdminID), rbac.ErrForbidden))
	assert.True(t, errors.Is(f.service.ForceDeleteUser(ctx, f.admin, rbac.SuperAdminID), rbac.ErrForbidden))
	_, err := f.service.SyncRoles(ctx, f.admin, rbac.SuperAdminID, []int64{f.editor.ID})
	assert.True(t, errors.Is(err, rbac.ErrForbidden))

	u, err := f.service.GetUser(ctx, f.admin, rbac.SuperAdminID)
	require.NoError(t, err)
	assert.Equal(t, rbac.SuperAdminID, u.ID)

	root := &rbac.Actor{ID: rbac.SuperAdminID}
	roles, err := f.service.SyncRoles(ctx, root, rbac.SuperAdminID, []int64{f.adminID})
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestUserLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.DeleteUser(ctx, f.admin, 4))
	page, err := f.service.ListUsers(ctx, f.admin, ListFilters{Trashed: true})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)

	require.NoError(t, f.service.RestoreUser(ctx, f.admin, 4))
	require.NoError(t, f.service.ForceDeleteUser(ctx, f.admin, 4))
	_, err = f.service.GetUser(ctx, f.admin, 4)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.Len(t, f.audit.entries, 3)
	assert.Equal(t, "user.trashed", f.audit.entries[0].Action)
	assert.Equal(t, "user.restored", f.audit.entries[1].Action)
	assert.Equal(t, "user.force_deleted", f.audit.entries[2].Action)
	assert.Equal(t, int64(4), f.audit.entries[2].EntityID)
	assert.Equal(t, f.admin.ID, f.audit.entries[2].ActorID)
}

func TestAuditFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.audit.fail = errors.New("audit table missing")
	require.NoError(t, f.service.DeleteUser(context.Background(), f.admin, 4))
}

func TestSyncRolesAssignsAndRejectsTrashed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roles, err := f.service.SyncRoles(ctx, f.admin, 5, []int64{f.editor.ID})
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "editor", roles[0].Slug)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, []string{"editor"}, f.audit.entries[0].Meta["roles"])

	u, err := f.service.GetUser(ctx, f.admin, 5)
	require.NoError(t, err)
	require.Len(t, u.Roles, 1)

	require.NoError(t, f.core.DeleteRole(ctx, f.editor.ID))
	_, err = f.service.SyncRoles(ctx, f.admin, 5, []int64{f.editor.ID})
	assert.True(t, errors.Is(err, rbac.ErrRoleTrashed))

	roles, err = f.service.SyncRoles(ctx, f.admin, 5, nil)
	require.NoError(t, err)
	assert.NotNil(t, roles)
	assert.Empty(t, roles)
}

func TestAssignRoleGrantWithoutAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager, err := f.core.CreateRole(ctx, rbac.RoleInput{Name: "User Manager"})
	require.NoError(t, err)
	_, err = f.core.Grant(ctx, manager.ID, rbac.ResourceUser, []string{"view", "assignRole"})
	require.NoError(t, err)
	require.NoError(t, f.core.AssignRole(ctx, 3, manager.ID))
	actor, err := f.core.LoadActor(ctx, 3)
	require.NoError(t, err)

	_, err = f.service.SyncRoles(ctx, actor, 5, []int64{f.editor.ID})
	require.NoError(t, err)
	_, err = f.service.SyncRoles(ctx, actor, rbac.SuperAdminID, []int64{f.editor.ID})
	assert.True(t, errors.Is(err, rbac.ErrForbidden))
	assert.True(t, errors.Is(f.service.DeleteUser(ctx, actor, 5), rbac.ErrForbidden))
}
