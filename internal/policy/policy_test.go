package policy_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-cms/folio/internal/policy"
	"github.com/folio-cms/folio/internal/rbac"
	"github.com/folio-cms/folio/internal/rbac/rbactest"
)

// stubChecker allows exactly the listed resource.action pairs.
type stubChecker struct {
	allow map[string]bool
	calls int
}

func (s *stubChecker) Can(_ context.Context, _ *rbac.Actor, resource string, action rbac.Action) bool {
	s.calls++
	return s.allow[resource+"."+string(action)]
}

type env struct {
	gate    *policy.Gate
	service *rbac.Service
	admin   rbac.Role
	editor  rbac.Role
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := rbac.NewService(rbactest.NewMemStore(), rbac.ServiceOptions{Logger: logger})
	require.NoError(t, svc.EnsureDefaultVocabulary(ctx))

	admin, err := svc.CreateRole(ctx, rbac.RoleInput{Name: "Admin"})
	require.NoError(t, err)
	editor, err := svc.CreateRole(ctx, rbac.RoleInput{Name: "Editor"})
	require.NoError(t, err)
	_, err = svc.Grant(ctx, editor.ID, rbac.ResourceBlog, []string{"viewAny", "view", "create", "update"})
	require.NoError(t, err)

	resolver := rbac.NewResolver(svc, logger, nil)
	return &env{
		gate:    policy.NewGate(policy.DefaultRegistry(), resolver, logger),
		service: svc,
		admin:   admin,
		editor:  editor,
	}
}

func (e *env) actor(t *testing.T, userID int64, roles ...rbac.Role) *rbac.Actor {
	t.Helper()
	ids := make([]int64, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	_, err := e.service.SyncUserRoles(context.Background(), userID, ids)
	require.NoError(t, err)
	a, err := e.service.LoadActor(context.Background(), userID)
	require.NoError(t, err)
	return a
}

func TestEditorOnBlog(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u1 := e.actor(t, 10, e.editor)

	assert.True(t, e.gate.Allows(ctx, u1, rbac.ResourceBlog, rbac.ActionCreate, nil))
	assert.False(t, e.gate.Allows(ctx, u1, rbac.ResourceBlog, rbac.ActionDelete, &rbac.Target{ID: 4}))
	assert.False(t, e.gate.Allows(ctx, u1, rbac.ResourceBlog, rbac.ActionForceDelete, &rbac.Target{ID: 4}))
}

func TestPublicReadOnProperty(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	assert.True(t, e.gate.Allows(ctx, nil, rbac.ResourceProperty, rbac.ActionViewAny, nil))
	assert.True(t, e.gate.Allows(ctx, nil, rbac.ResourceProperty, rbac.ActionView, &rbac.Target{ID: 3}))
	assert.False(t, e.gate.Allows(ctx, nil, rbac.ResourceProperty, rbac.ActionUpdate, &rbac.Target{ID: 3}))
	assert.True(t, e.gate.Allows(ctx, nil, rbac.ResourceProjectCategory, rbac.ActionViewAny, nil))

	// Trashed instances fall back to the generic grant.
	assert.False(t, e.gate.Allows(ctx, nil, rbac.ResourceProperty, rbac.ActionView, &rbac.Target{ID: 3, Trashed: true}))
	admin := e.actor(t, 2, e.admin)
	assert.True(t, e.gate.Allows(ctx, admin, rbac.ResourceProperty, rbac.ActionView, &rbac.Target{ID: 3, Trashed: true}))
}

func TestAdminCannotTouchSuperAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u2 := e.actor(t, 2, e.admin)
	root := &rbac.Actor{ID: rbac.SuperAdminID}
	protected := &rbac.Target{ID: rbac.SuperAdminID}

	for _, a := range []rbac.Action{rbac.ActionUpdate, rbac.ActionDelete, rbac.ActionForceDelete, rbac.ActionAssignRole} {
		assert.False(t, e.gate.Allows(ctx, u2, rbac.ResourceUser, a, protected), string(a))
		assert.True(t, e.gate.Allows(ctx, root, rbac.ResourceUser, a, protected), string(a))
	}
	assert.True(t, e.gate.Allows(ctx, u2, rbac.ResourceUser, rbac.ActionView, protected))
	assert.True(t, e.gate.Allows(ctx, u2, rbac.ResourceUser, rbac.ActionDelete, &rbac.Target{ID: 5}))
}

func TestOwnershipOverride(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.actor(t, 20)
	stranger := e.actor(t, 21)
	mine := &rbac.Target{ID: 1, OwnerID: 20}

	for _, resource := range []string{rbac.ResourceExperience, rbac.ResourceComment, rbac.ResourceGuestbookEntry} {
		assert.True(t, e.gate.Allows(ctx, owner, resource, rbac.ActionUpdate, mine), resource)
		assert.True(t, e.gate.Allows(ctx, owner, resource, rbac.ActionDelete, mine), resource)
		assert.False(t, e.gate.Allows(ctx, owner, resource, rbac.ActionForceDelete, mine), resource)
		assert.False(t, e.gate.Allows(ctx, stranger, resource, rbac.ActionUpdate, mine), resource)
		assert.False(t, e.gate.Allows(ctx, nil, resource, rbac.ActionUpdate, &rbac.Target{ID: 1}), resource)
	}

	admin := e.actor(t, 2, e.admin)
	assert.True(t, e.gate.Allows(ctx, admin, rbac.ResourceComment, rbac.ActionDelete, mine))
}

func TestInquiryCreateIsPublic(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	assert.True(t, e.gate.Allows(ctx, nil, rbac.ResourceInquiry, rbac.ActionCreate, nil))
	assert.False(t, e.gate.Allows(ctx, nil, rbac.ResourceInquiry, rbac.ActionViewAny, nil))
}

func TestSkillIsRetired(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.actor(t, 2, e.admin)
	root := &rbac.Actor{ID: rbac.SuperAdminID}

	for _, a := range rbac.StandardActions() {
		assert.False(t, e.gate.Allows(ctx, admin, rbac.ResourceSkill, a, nil))
		assert.False(t, e.gate.Allows(ctx, root, rbac.ResourceSkill, a, nil))
	}
}

func TestUnregisteredResourceUsesGenericResolver(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	editor := e.actor(t, 10, e.editor)

	assert.False(t, e.gate.Allows(ctx, editor, "newsletter", rbac.ActionView, nil))
	assert.True(t, e.gate.Allows(ctx, &rbac.Actor{ID: rbac.SuperAdminID}, "newsletter", rbac.ActionView, nil))
}

func TestNoRolesMeansNoAccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	nobody := e.actor(t, 30)

	for _, resource := range []string{rbac.ResourceBlog, rbac.ResourceProject, rbac.ResourceUser, rbac.ResourceRole} {
		for _, a := range rbac.StandardActions() {
			assert.False(t, e.gate.Allows(ctx, nobody, resource, a, &rbac.Target{ID: 9}), "%s.%s", resource, a)
		}
	}
}

func TestAuthorizeReturnsForbiddenError(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	editor := e.actor(t, 10, e.editor)

	require.NoError(t, e.gate.Authorize(ctx, editor, rbac.ResourceBlog, rbac.ActionUpdate, &rbac.Target{ID: 1}))
	err := e.gate.Authorize(ctx, editor, rbac.ResourceBlog, rbac.ActionDelete, &rbac.Target{ID: 1})
	var forbidden *rbac.ForbiddenError
	require.True(t, errors.As(err, &forbidden))
	assert.Equal(t, rbac.ActionDelete, forbidden.Action)
	assert.True(t, errors.Is(err, rbac.ErrForbidden))
}

func TestOverridesShortCircuitInOrder(t *testing.T) {
	checker := &stubChecker{allow: map[string]bool{"doc.view": true}}
	ctx := context.Background()
	actor := &rbac.Actor{ID: 5}

	p := policy.New("doc", policy.DenyAll(), policy.PublicRead())
	assert.False(t, p.Allows(ctx, checker, actor, rbac.ActionView, nil))
	assert.Zero(t, checker.calls)

	p = policy.New("doc")
	assert.True(t, p.Allows(ctx, checker, actor, rbac.ActionView, nil))
	assert.Equal(t, 1, checker.calls)
	assert.Equal(t, policy.Abstain, p.Evaluate(ctx, actor, rbac.ActionView, nil))
}

func TestDefaultRegistryCoversEveryResource(t *testing.T) {
	reg := policy.DefaultRegistry()
	for _, resource := range rbac.Resources() {
		_, ok := reg.Lookup(resource)
		assert.True(t, ok, resource)
	}
	_, ok := reg.Lookup("newsletter")
	assert.False(t, ok)
	assert.Len(t, reg.Resources(), len(rbac.Resources()))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allow", policy.Allow.String())
	assert.Equal(t, "deny", policy.Deny.String())
	assert.Equal(t, "abstain", policy.Abstain.String())
}
