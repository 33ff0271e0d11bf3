package rbac

import "context"

// PermissionStore persists resource vocabularies and role grants.
type PermissionStore interface {
	GetPermission(ctx context.Context, resource string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	// DefinePermission upserts the vocabulary and prunes existing grants to it.
	DefinePermission(ctx context.Context, perm Permission) (Permission, error)

	UpsertGrant(ctx context.Context, roleID, permissionID int64, actions ActionSet) (RolePermission, error)
	DeleteGrant(ctx context.Context, roleID, permissionID int64) error
	// Grant returns the stored actions; found is false when no binding exists.
	Grant(ctx context.Context, roleID int64, resource string) (actions ActionSet, found bool, err error)
	GrantsForRole(ctx context.Context, roleID int64) ([]RolePermission, error)
}

// RoleStore persists roles.
type RoleStore interface {
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleBySlug(ctx context.Context, slug string) (Role, error)
	ListRoles(ctx context.Context, includeTrashed bool) ([]Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	SoftDeleteRole(ctx context.Context, id int64) error
	RestoreRole(ctx context.Context, id int64) error
	ForceDeleteRole(ctx context.Context, id int64) error
}

// AssignmentStore persists user to role bindings.
type AssignmentStore interface {
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
	SyncUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	RolesForUser(ctx context.Context, userID int64, includeTrashed bool) ([]Role, error)
}

// Store aggregates every persistence port used by Service.
type Store interface {
	PermissionStore
	RoleStore
	AssignmentStore
}
