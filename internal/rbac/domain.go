package rbac

import (
	"time"
)

// SuperAdminID is the reserved identity exempt from every permission check.
const SuperAdminID int64 = 1

// DefaultAdminRole is the role slug that marks an actor as administrator.
const DefaultAdminRole = "admin"

// Role represents a named bundle of resource grants.
type Role struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Trashed reports whether the role has been soft deleted.
func (r Role) Trashed() bool {
	return r.DeletedAt != nil
}

// Permission is the action vocabulary recognised for one resource.
type Permission struct {
	ID          int64     `json:"id"`
	Resource    string    `json:"resource"`
	Actions     ActionSet `json:"actions"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Supports reports whether the action belongs to the resource vocabulary.
func (p Permission) Supports(action Action) bool {
	return p.Actions.Has(action)
}

// RolePermission binds a role to a resource with the actions actually granted.
type RolePermission struct {
	RoleID       int64     `json:"role_id"`
	PermissionID int64     `json:"permission_id"`
	Resource     string    `json:"resource"`
	Actions      ActionSet `json:"actions"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserRole links a user to a role.
type UserRole struct {
	UserID    int64     `json:"user_id"`
	RoleID    int64     `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleRef is the part of a role an Actor carries around.
type RoleRef struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
}

// Actor describes the authenticated identity a check is evaluated for.
// A nil *Actor is a guest.
type Actor struct {
	ID        int64     `json:"id"`
	Roles     []RoleRef `json:"roles"`
	AdminRole string    `json:"-"`
}

// Authenticated reports whether the actor represents a signed-in user.
func (a *Actor) Authenticated() bool {
	return a != nil && a.ID > 0
}

// IsSuperAdmin reports whether the actor is the reserved super admin.
func (a *Actor) IsSuperAdmin() bool {
	return a.Authenticated() && a.ID == SuperAdminID
}

// IsAdmin reports whether the actor holds the administrator role.
func (a *Actor) IsAdmin() bool {
	if !a.Authenticated() {
		return false
	}
	slug := a.AdminRole
	if slug == "" {
		slug = DefaultAdminRole
	}
	return a.HasRole(slug)
}

// HasRole reports whether the actor holds the role with the given slug.
func (a *Actor) HasRole(slug string) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r.Slug == slug {
			return true
		}
	}
	return false
}

// RoleIDs returns the identifiers of every role the actor holds.
func (a *Actor) RoleIDs() []int64 {
	if a == nil {
		return nil
	}
	ids := make([]int64, 0, len(a.Roles))
	for _, r := range a.Roles {
		ids = append(ids, r.ID)
	}
	return ids
}

// Target describes the resource instance an instance-level check refers to.
// A nil *Target means the check is coarse (viewAny, create).
type Target struct {
	ID      int64
	OwnerID int64
	Trashed bool
}
