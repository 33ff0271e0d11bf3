package users

import (
	"context"
	"log/slog"

	"github.com/folio-cms/folio/internal/rbac"
	"github.com/folio-cms/folio/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filters ListFilters, limit, offset int) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	SoftDeleteUser(ctx context.Context, id int64) error
	RestoreUser(ctx context.Context, id int64) error
	ForceDeleteUser(ctx context.Context, id int64) error
}

// RoleAssigner is the part of the permission core that manages user roles.
type RoleAssigner interface {
	SyncUserRoles(ctx context.Context, userID int64, roleIDs []int64) ([]rbac.Role, error)
	RolesForUser(ctx context.Context, userID int64) ([]rbac.Role, error)
}

// Authorizer is the policy gate.
type Authorizer interface {
	Authorize(ctx context.Context, actor *rbac.Actor, resource string, action rbac.Action, target *rbac.Target) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	roles  RoleAssigner
	gate   Authorizer
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roles RoleAssigner, gate Authorizer, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, roles: roles, gate: gate, audit: audit, logger: logger}
}

func (s *Service) record(ctx context.Context, actor *rbac.Actor, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   rbac.ResourceUser,
		EntityID: userID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// Page is one page of users.
type Page struct {
	Users      []User            `json:"users"`
	Pagination shared.Pagination `json:"pagination"`
}

// ListUsers returns a page of users. Listing trashed users additionally needs restore.
func (s *Service) ListUsers(ctx context.Context, actor *rbac.Actor, filters ListFilters) (Page, error) {
	if err := s.gate.Authorize(ctx, actor, rbac.ResourceUser, rbac.ActionViewAny, nil); err != nil {
		return Page{}, err
	}
	if filters.Trashed {
		if err := s.gate.Authorize(ctx, actor, rbac.ResourceUser, rbac.ActionRestore, nil); err != nil {
			return Page{}, err
		}
	}
	p := shared.NewPagination(filters.Page, filters.PerPage, 0)
	list, total, err := s.repo.ListUsers(ctx, filters, p.PerPage, p.Offset())
	if err != nil {
		return Page{}, err
	}
	if list == nil {
		list = []User{}
	}
	return Page{Users: list, Pagination: shared.NewPagination(p.Page, p.PerPage, total)}, nil
}

func (s *Service) load(ctx context.Context, actor *rbac.Actor, id int64, action rbac.Action) (User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := s.gate.Authorize(ctx, actor, rbac.ResourceUser, action, &rbac.Target{ID: u.ID, Trashed: u.Trashed()}); err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUser returns a user with its active roles.
func (s *Service) GetUser(ctx context.Context, actor *rbac.Actor, id int64) (User, error) {
	u, err := s.load(ctx, actor, id, rbac.ActionView)
	if err != nil {
		return User{}, err
	}
	roles, err := s.roles.RolesForUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	u.Roles = roles
	return u, nil
}

// DeleteUser soft deletes an account.
func (s *Service) DeleteUser(ctx context.Context, actor *rbac.Actor, id int64) error {
	if _, err := s.load(ctx, actor, id, rbac.ActionDelete); err != nil {
		return err
	}
	if err := s.repo.SoftDeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user trashed", slog.Int64("user_id", id), slog.Int64("actor_id", actor.ID))
	s.record(ctx, actor, "user.trashed", id, nil)
	return nil
}

// RestoreUser brings back a soft deleted account.
func (s *Service) RestoreUser(ctx context.Context, actor *rbac.Actor, id int64) error {
	if _, err := s.load(ctx, actor, id, rbac.ActionRestore); err != nil {
		return err
	}
	if err := s.repo.RestoreUser(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "user.restored", id, nil)
	return nil
}

// ForceDeleteUser permanently removes an account.
func (s *Service) ForceDeleteUser(ctx context.Context, actor *rbac.Actor, id int64) error {
	if _, err := s.load(ctx, actor, id, rbac.ActionForceDelete); err != nil {
		return err
	}
	if err := s.repo.ForceDeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Warn("user force deleted", slog.Int64("user_id", id), slog.Int64("actor_id", actor.ID))
	s.record(ctx, actor, "user.force_deleted", id, nil)
	return nil
}

// SyncRoles replaces the user's roles.
func (s *Service) SyncRoles(ctx context.Context, actor *rbac.Actor, id int64, roleIDs []int64) ([]rbac.Role, error) {
	if _, err := s.load(ctx, actor, id, rbac.ActionAssignRole); err != nil {
		return nil, err
	}
	roles, err := s.roles.SyncUserRoles(ctx, id, roleIDs)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []rbac.Role{}
	}
	slugs := make([]string, 0, len(roles))
	for _, r := range roles {
		slugs = append(slugs, r.Slug)
	}
	s.record(ctx, actor, "user.roles_synced", id, map[string]any{"roles": slugs})
	return roles, nil
}
