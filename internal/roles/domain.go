package roles

import "github.com/folio-cms/folio/internal/rbac"

// RoleRequest is the create/update payload.
type RoleRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Slug        string `json:"slug" validate:"omitempty,max=120"`
	Description string `json:"description" validate:"max=255"`
}

// GrantRequest replaces the actions a role holds on one resource.
// An empty list stores an empty grant.
type GrantRequest struct {
	Actions []string `json:"actions" validate:"dive,required,alpha,max=64"`
}

// RoleDetail is a role together with its grants.
type RoleDetail struct {
	rbac.Role
	Grants []rbac.RolePermission `json:"grants"`
}

func (r RoleRequest) input() rbac.RoleInput {
	return rbac.RoleInput{Name: r.Name, Slug: r.Slug, Description: r.Description}
}
