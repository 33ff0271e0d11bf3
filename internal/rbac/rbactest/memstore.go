// Package rbactest provides an in-memory rbac.Store for tests.
package rbactest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/folio-cms/folio/internal/rbac"
)

type grantKey struct {
	roleID       int64
	permissionID int64
}

// MemStore is a goroutine-safe rbac.Store kept in maps.
type MemStore struct {
	mu sync.Mutex

	permissions map[string]rbac.Permission
	roles       map[int64]rbac.Role
	grants      map[grantKey]rbac.RolePermission
	userRoles   map[int64]map[int64]struct{}

	nextPermID int64
	nextRoleID int64

	// GrantReads counts calls to Grant, for cache assertions.
	GrantReads int
	// FailGrant makes Grant return this error when set.
	FailGrant error
}

var _ rbac.Store = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		permissions: make(map[string]rbac.Permission),
		roles:       make(map[int64]rbac.Role),
		grants:      make(map[grantKey]rbac.RolePermission),
		userRoles:   make(map[int64]map[int64]struct{}),
	}
}

func (m *MemStore) GetPermission(_ context.Context, resource string) (rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.permissions[resource]
	if !ok {
		return rbac.Permission{}, rbac.ErrUnknownResource
	}
	p.Actions = p.Actions.Clone()
	return p, nil
}

func (m *MemStore) ListPermissions(_ context.Context) ([]rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rbac.Permission, 0, len(m.permissions))
	for _, p := range m.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out, nil
}

func (m *MemStore) DefinePermission(_ context.Context, perm rbac.Permission) (rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := m.permissions[perm.Resource]; ok {
		perm.ID = existing.ID
		perm.CreatedAt = existing.CreatedAt
	} else {
		m.nextPermID++
		perm.ID = m.nextPermID
		perm.CreatedAt = now
	}
	perm.UpdatedAt = now
	m.permissions[perm.Resource] = perm
	for k, g := range m.grants {
		if k.permissionID == perm.ID {
			g.Actions = g.Actions.Intersect(perm.Actions)
			m.grants[k] = g
		}
	}
	return perm, nil
}

func (m *MemStore) resourceByID(id int64) (string, bool) {
	for _, p := range m.permissions {
		if p.ID == id {
			return p.Resource, true
		}
	}
	return "", false
}

func (m *MemStore) UpsertGrant(_ context.Context, roleID, permissionID int64, actions rbac.ActionSet) (rbac.RolePermission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return rbac.RolePermission{}, rbac.ErrNotFound
	}
	resource, ok := m.resourceByID(permissionID)
	if !ok {
		return rbac.RolePermission{}, rbac.ErrNotFound
	}
	rp := rbac.RolePermission{
		RoleID:       roleID,
		PermissionID: permissionID,
		Resource:     resource,
		Actions:      actions.Clone(),
		UpdatedAt:    time.Now().UTC(),
	}
	m.grants[grantKey{roleID, permissionID}] = rp
	return rp, nil
}

func (m *MemStore) DeleteGrant(_ context.Context, roleID, permissionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := grantKey{roleID, permissionID}
	if _, ok := m.grants[k]; !ok {
		return rbac.ErrNotFound
	}
	delete(m.grants, k)
	return nil
}

func (m *MemStore) Grant(_ context.Context, roleID int64, resource string) (rbac.ActionSet, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GrantReads++
	if m.FailGrant != nil {
		return nil, false, m.FailGrant
	}
	p, ok := m.permissions[resource]
	if !ok {
		return nil, false, nil
	}
	g, ok := m.grants[grantKey{roleID, p.ID}]
	if !ok {
		return nil, false, nil
	}
	return g.Actions.Clone(), true, nil
}

func (m *MemStore) GrantsForRole(_ context.Context, roleID int64) ([]rbac.RolePermission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rbac.RolePermission
	for k, g := range m.grants {
		if k.roleID == roleID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out, nil
}

func (m *MemStore) GetRole(_ context.Context, id int64) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	return r, nil
}

func (m *MemStore) GetRoleBySlug(_ context.Context, slug string) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Slug == slug {
			return r, nil
		}
	}
	return rbac.Role{}, rbac.ErrNotFound
}

func (m *MemStore) ListRoles(_ context.Context, includeTrashed bool) ([]rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rbac.Role, 0, len(m.roles))
	for _, r := range m.roles {
		if r.Trashed() && !includeTrashed {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) CreateRole(_ context.Context, role rbac.Role) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Slug == role.Slug {
			return rbac.Role{}, rbac.ErrConflict
		}
	}
	m.nextRoleID++
	now := time.Now().UTC()
	role.ID = m.nextRoleID
	role.CreatedAt, role.UpdatedAt = now, now
	role.DeletedAt = nil
	m.roles[role.ID] = role
	return role, nil
}

func (m *MemStore) UpdateRole(_ context.Context, role rbac.Role) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.roles[role.ID]
	if !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	for _, r := range m.roles {
		if r.ID != role.ID && r.Slug == role.Slug {
			return rbac.Role{}, rbac.ErrConflict
		}
	}
	current.Name, current.Slug, current.Description = role.Name, role.Slug, role.Description
	current.UpdatedAt = time.Now().UTC()
	m.roles[role.ID] = current
	return current, nil
}

func (m *MemStore) SoftDeleteRole(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok || r.Trashed() {
		return rbac.ErrNotFound
	}
	now := time.Now().UTC()
	r.DeletedAt = &now
	m.roles[id] = r
	return nil
}

func (m *MemStore) RestoreRole(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok || !r.Trashed() {
		return rbac.ErrNotFound
	}
	r.DeletedAt = nil
	m.roles[id] = r
	return nil
}

func (m *MemStore) ForceDeleteRole(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(m.roles, id)
	for k := range m.grants {
		if k.roleID == id {
			delete(m.grants, k)
		}
	}
	for _, set := range m.userRoles {
		delete(set, id)
	}
	return nil
}

func (m *MemStore) AssignRole(_ context.Context, userID, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return rbac.ErrNotFound
	}
	set, ok := m.userRoles[userID]
	if !ok {
		set = make(map[int64]struct{})
		m.userRoles[userID] = set
	}
	set[roleID] = struct{}{}
	return nil
}

func (m *MemStore) RemoveRole(_ context.Context, userID, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.userRoles[userID], roleID)
	return nil
}

func (m *MemStore) SyncUserRoles(_ context.Context, userID int64, roleIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[int64]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		if _, ok := m.roles[id]; !ok {
			return rbac.ErrNotFound
		}
		set[id] = struct{}{}
	}
	m.userRoles[userID] = set
	return nil
}

func (m *MemStore) RolesForUser(_ context.Context, userID int64, includeTrashed bool) ([]rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rbac.Role
	for id := range m.userRoles[userID] {
		r, ok := m.roles[id]
		if !ok || (r.Trashed() && !includeTrashed) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Reads returns the number of Grant calls so far.
func (m *MemStore) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GrantReads
}
