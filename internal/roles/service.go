package roles

import (
	"context"

	"github.com/folio-cms/folio/internal/rbac"
	"github.com/folio-cms/folio/internal/shared"
)

// Authorizer is the policy gate as seen by role administration.
type Authorizer interface {
	Authorize(ctx context.Context, actor *rbac.Actor, resource string, action rbac.Action, target *rbac.Target) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service applies role policies before delegating to the permission core.
type Service struct {
	rbac  *rbac.Service
	gate  Authorizer
	audit AuditPort
}

// NewService constructs the role administration service. audit may be nil.
func NewService(core *rbac.Service, gate Authorizer, audit AuditPort) *Service {
	return &Service{rbac: core, gate: gate, audit: audit}
}

func (s *Service) record(ctx context.Context, actor *rbac.Actor, action string, roleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	var actorID int64
	if actor != nil {
		actorID = actor.ID
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   rbac.ResourceRole,
		EntityID: roleID,
		Meta:     meta,
	})
}

func (s *Service) authorize(ctx context.Context, actor *rbac.Actor, action rbac.Action, target *rbac.Target) error {
	return s.gate.Authorize(ctx, actor, rbac.ResourceRole, action, target)
}

// target loads the role so instance checks see whether it is trashed.
func (s *Service) target(ctx context.Context, id int64) (rbac.Role, *rbac.Target, error) {
	role, err := s.rbac.GetRole(ctx, id)
	if err != nil {
		return rbac.Role{}, nil, err
	}
	return role, &rbac.Target{ID: role.ID, Trashed: role.Trashed()}, nil
}

// List returns roles. Listing trashed roles additionally needs restore.
func (s *Service) List(ctx context.Context, actor *rbac.Actor, includeTrashed bool) ([]rbac.Role, error) {
	if err := s.authorize(ctx, actor, rbac.ActionViewAny, nil); err != nil {
		return nil, err
	}
	if includeTrashed {
		if err := s.authorize(ctx, actor, rbac.ActionRestore, nil); err != nil {
			return nil, err
		}
	}
	return s.rbac.ListRoles(ctx, includeTrashed)
}

// Get returns a role with its grants.
func (s *Service) Get(ctx context.Context, actor *rbac.Actor, id int64) (RoleDetail, error) {
	role, target, err := s.target(ctx, id)
	if err != nil {
		return RoleDetail{}, err
	}
	if err := s.authorize(ctx, actor, rbac.ActionView, target); err != nil {
		return RoleDetail{}, err
	}
	grants, err := s.rbac.GrantsForRole(ctx, id)
	if err != nil {
		return RoleDetail{}, err
	}
	if grants == nil {
		grants = []rbac.RolePermission{}
	}
	return RoleDetail{Role: role, Grants: grants}, nil
}

// Create inserts a role.
func (s *Service) Create(ctx context.Context, actor *rbac.Actor, req RoleRequest) (rbac.Role, error) {
	if err := s.authorize(ctx, actor, rbac.ActionCreate, nil); err != nil {
		return rbac.Role{}, err
	}
	role, err := s.rbac.CreateRole(ctx, req.input())
	if err != nil {
		return rbac.Role{}, err
	}
	s.record(ctx, actor, "role.created", role.ID, map[string]any{"slug": role.Slug})
	return role, nil
}

// Update edits a role.
func (s *Service) Update(ctx context.Context, actor *rbac.Actor, id int64, req RoleRequest) (rbac.Role, error) {
	_, target, err := s.target(ctx, id)
	if err != nil {
		return rbac.Role{}, err
	}
	if err := s.authorize(ctx, actor, rbac.ActionUpdate, target); err != nil {
		return rbac.Role{}, err
	}
	role, err := s.rbac.UpdateRole(ctx, id, req.input())
	if err != nil {
		return rbac.Role{}, err
	}
	s.record(ctx, actor, "role.updated", id, map[string]any{"slug": role.Slug, "name": role.Name})
	return role, nil
}

// Delete soft deletes a role.
func (s *Service) Delete(ctx context.Context, actor *rbac.Actor, id int64) error {
	_, target, err := s.target(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, rbac.ActionDelete, target); err != nil {
		return err
	}
	if err := s.rbac.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "role.trashed", id, nil)
	return nil
}

// Restore undoes a soft delete.
func (s *Service) Restore(ctx context.Context, actor *rbac.Actor, id int64) error {
	_, target, err := s.target(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, rbac.ActionRestore, target); err != nil {
		return err
	}
	if err := s.rbac.RestoreRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "role.restored", id, nil)
	return nil
}

// ForceDelete removes a role permanently.
func (s *Service) ForceDelete(ctx context.Context, actor *rbac.Actor, id int64) error {
	_, target, err := s.target(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, rbac.ActionForceDelete, target); err != nil {
		return err
	}
	if err := s.rbac.ForceDeleteRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "role.force_deleted", id, nil)
	return nil
}

// Grants lists the grants of a role.
func (s *Service) Grants(ctx context.Context, actor *rbac.Actor, id int64) ([]rbac.RolePermission, error) {
	detail, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return detail.Grants, nil
}

// Grant replaces the actions of a role on a resource.
func (s *Service) Grant(ctx context.Context, actor *rbac.Actor, id int64, resource string, req GrantRequest) (rbac.RolePermission, error) {
	_, target, err := s.target(ctx, id)
	if err != nil {
		return rbac.RolePermission{}, err
	}
	if err := s.authorize(ctx, actor, rbac.ActionUpdate, target); err != nil {
		return rbac.RolePermission{}, err
	}
	grant, err := s.rbac.Grant(ctx, id, resource, req.Actions)
	if err != nil {
		return rbac.RolePermission{}, err
	}
	s.record(ctx, actor, "role.granted", id, map[string]any{"resource": resource, "actions": grant.Actions.Sorted()})
	return grant, nil
}

// Revoke removes a role's grant on a resource.
func (s *Service) Revoke(ctx context.Context, actor *rbac.Actor, id int64, resource string) error {
	_, target, err := s.target(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, rbac.ActionUpdate, target); err != nil {
		return err
	}
	if err := s.rbac.Revoke(ctx, id, resource); err != nil {
		return err
	}
	s.record(ctx, actor, "role.revoked", id, map[string]any{"resource": resource})
	return nil
}
