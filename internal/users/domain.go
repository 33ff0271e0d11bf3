package users

import (
	"time"

	"github.com/folio-cms/folio/internal/rbac"
)

// User represents a CMS account for management.
type User struct {
	ID        int64       `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	DeletedAt *time.Time  `json:"deleted_at,omitempty"`
	Roles     []rbac.Role `json:"roles,omitempty"`
}

// Trashed reports whether the account has been soft deleted.
func (u User) Trashed() bool {
	return u.DeletedAt != nil
}

// ListFilters narrows the user listing.
type ListFilters struct {
	Page    int
	PerPage int
	Search  string
	Trashed bool
}

// SyncRolesRequest replaces the roles of a user.
type SyncRolesRequest struct {
	RoleIDs []int64 `json:"role_ids" validate:"max=50,dive,gt=0"`
}
