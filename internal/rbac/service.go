package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

var (
	resourcePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	slugPattern     = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// ServiceOptions configures optional collaborators of Service.
type ServiceOptions struct {
	Cache     *GrantCache
	Logger    *slog.Logger
	AdminRole string
}

// Service orchestrates the permission store and role assignment.
type Service struct {
	store     Store
	cache     *GrantCache
	logger    *slog.Logger
	adminRole string
}

// NewService constructs a Service over the provided store.
func NewService(store Store, opts ServiceOptions) *Service {
	adminRole := strings.TrimSpace(opts.AdminRole)
	if adminRole == "" {
		adminRole = DefaultAdminRole
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: opts.Cache, logger: logger, adminRole: adminRole}
}

// AdminRole returns the slug that designates administrators.
func (s *Service) AdminRole() string {
	return s.adminRole
}

// DefinePermission registers or replaces the action vocabulary of a resource.
// Existing grants are trimmed to the new vocabulary.
func (s *Service) DefinePermission(ctx context.Context, resource string, actions []string, description string) (Permission, error) {
	resource = strings.TrimSpace(resource)
	if !resourcePattern.MatchString(resource) {
		return Permission{}, fmt.Errorf("%w: resource key %q", ErrInvalidInput, resource)
	}
	if len(actions) == 0 {
		return Permission{}, fmt.Errorf("%w: resource %q needs at least one action", ErrInvalidInput, resource)
	}
	vocab := make(ActionSet, len(actions))
	for _, raw := range actions {
		a, ok := ParseAction(raw)
		if !ok {
			return Permission{}, fmt.Errorf("%w: action name %q", ErrInvalidInput, raw)
		}
		vocab[a] = struct{}{}
	}
	perm, err := s.store.DefinePermission(ctx, Permission{
		Resource:    resource,
		Actions:     vocab,
		Description: strings.TrimSpace(description),
	})
	s.cache.InvalidateResource(resource)
	if err != nil {
		return Permission{}, err
	}
	s.logger.Info("rbac permission defined", slog.String("resource", resource), slog.Any("actions", vocab.Strings()))
	return perm, nil
}

// ListPermissions returns every resource vocabulary.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// GetPermission returns the vocabulary of one resource.
func (s *Service) GetPermission(ctx context.Context, resource string) (Permission, error) {
	return s.store.GetPermission(ctx, resource)
}

// Grant stores exactly the given actions for the role on the resource.
// Every action must belong to the resource vocabulary. Granting the same set
// twice leaves the store unchanged.
func (s *Service) Grant(ctx context.Context, roleID int64, resource string, actions []string) (RolePermission, error) {
	perm, err := s.store.GetPermission(ctx, resource)
	if err != nil {
		return RolePermission{}, err
	}
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return RolePermission{}, err
	}
	if role.Trashed() {
		return RolePermission{}, fmt.Errorf("%w: %s", ErrRoleTrashed, role.Slug)
	}

	granted := make(ActionSet, len(actions))
	var unknown []Action
	for _, raw := range actions {
		a, ok := ParseAction(raw)
		if !ok || !perm.Supports(a) {
			unknown = append(unknown, Action(strings.TrimSpace(raw)))
			continue
		}
		granted[a] = struct{}{}
	}
	if len(unknown) > 0 {
		sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
		return RolePermission{}, &UnknownActionError{Resource: resource, Actions: unknown}
	}

	rp, err := s.store.UpsertGrant(ctx, role.ID, perm.ID, granted)
	s.cache.InvalidateGrant(role.ID, perm.Resource)
	if err != nil {
		return RolePermission{}, err
	}
	s.logger.Info("rbac grant stored",
		slog.String("role", role.Slug),
		slog.String("resource", perm.Resource),
		slog.Any("actions", granted.Strings()),
	)
	return rp, nil
}

// Revoke removes the role's grant on the resource entirely.
func (s *Service) Revoke(ctx context.Context, roleID int64, resource string) error {
	perm, err := s.store.GetPermission(ctx, resource)
	if err != nil {
		return err
	}
	err = s.store.DeleteGrant(ctx, roleID, perm.ID)
	s.cache.InvalidateGrant(roleID, perm.Resource)
	return err
}

// ActionsFor returns the actions the role holds on the resource. A missing
// binding yields an empty set.
func (s *Service) ActionsFor(ctx context.Context, roleID int64, resource string) (ActionSet, error) {
	actions, err := s.actionsFor(ctx, roleID, resource)
	if err != nil {
		return nil, err
	}
	return actions.Clone(), nil
}

func (s *Service) actionsFor(ctx context.Context, roleID int64, resource string) (ActionSet, error) {
	return s.cache.Grant(ctx, roleID, resource, func(ctx context.Context) (ActionSet, error) {
		actions, found, err := s.store.Grant(ctx, roleID, resource)
		if err != nil {
			return nil, err
		}
		if !found {
			return ActionSet{}, nil
		}
		return actions, nil
	})
}

func (s *Service) permission(ctx context.Context, resource string) (Permission, error) {
	return s.cache.Permission(ctx, resource, func(ctx context.Context) (Permission, error) {
		return s.store.GetPermission(ctx, resource)
	})
}

// GrantsForRole lists the grants held by a role.
func (s *Service) GrantsForRole(ctx context.Context, roleID int64) ([]RolePermission, error) {
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.store.GrantsForRole(ctx, roleID)
}

// RoleInput carries editable role fields.
type RoleInput struct {
	Name        string
	Slug        string
	Description string
}

func (s *Service) normalizeRole(in RoleInput) (Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", ErrInvalidInput)
	}
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if !slugPattern.MatchString(slug) {
		return Role{}, fmt.Errorf("%w: role slug %q", ErrInvalidInput, slug)
	}
	return Role{Name: name, Slug: slug, Description: strings.TrimSpace(in.Description)}, nil
}

// ListRoles returns roles, optionally including soft deleted ones.
func (s *Service) ListRoles(ctx context.Context, includeTrashed bool) ([]Role, error) {
	return s.store.ListRoles(ctx, includeTrashed)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.store.GetRole(ctx, id)
}

// CreateRole inserts a new role. The slug defaults to the slugified name.
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	role, err := s.normalizeRole(in)
	if err != nil {
		return Role{}, err
	}
	created, err := s.store.CreateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.logger.Info("rbac role created", slog.Int64("role_id", created.ID), slog.String("slug", created.Slug))
	return created, nil
}

// UpdateRole changes name, slug and description. The admin role keeps its slug.
func (s *Service) UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error) {
	current, err := s.store.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	role, err := s.normalizeRole(in)
	if err != nil {
		return Role{}, err
	}
	if current.Slug == s.adminRole && role.Slug != current.Slug {
		return Role{}, fmt.Errorf("%w: the %s role slug cannot change", ErrInvalidInput, s.adminRole)
	}
	role.ID = id
	updated, err := s.store.UpdateRole(ctx, role)
	s.cache.Purge()
	return updated, err
}

// DeleteRole soft deletes a role. Its grants stop applying until it is restored.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	if err := s.guardAdminRole(ctx, id); err != nil {
		return err
	}
	err := s.store.SoftDeleteRole(ctx, id)
	s.cache.Purge()
	if err == nil {
		s.logger.Info("rbac role trashed", slog.Int64("role_id", id))
	}
	return err
}

// RestoreRole brings a soft deleted role back.
func (s *Service) RestoreRole(ctx context.Context, id int64) error {
	err := s.store.RestoreRole(ctx, id)
	s.cache.Purge()
	if err == nil {
		s.logger.Info("rbac role restored", slog.Int64("role_id", id))
	}
	return err
}

// ForceDeleteRole permanently removes a role with its grants and assignments.
func (s *Service) ForceDeleteRole(ctx context.Context, id int64) error {
	if err := s.guardAdminRole(ctx, id); err != nil {
		return err
	}
	err := s.store.ForceDeleteRole(ctx, id)
	s.cache.Purge()
	if err == nil {
		s.logger.Warn("rbac role force deleted", slog.Int64("role_id", id))
	}
	return err
}

func (s *Service) guardAdminRole(ctx context.Context, id int64) error {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.Slug == s.adminRole {
		return fmt.Errorf("%w: the %s role cannot be deleted", ErrInvalidInput, s.adminRole)
	}
	return nil
}

func (s *Service) activeRole(ctx context.Context, id int64) (Role, error) {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if role.Trashed() {
		return Role{}, fmt.Errorf("%w: %s", ErrRoleTrashed, role.Slug)
	}
	return role, nil
}

// AssignRole binds an active role to the user.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	if _, err := s.activeRole(ctx, roleID); err != nil {
		return err
	}
	return s.store.AssignRole(ctx, userID, roleID)
}

// RemoveRole unbinds a role from the user.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return s.store.RemoveRole(ctx, userID, roleID)
}

// SyncUserRoles replaces the user's roles with the given active roles.
func (s *Service) SyncUserRoles(ctx context.Context, userID int64, roleIDs []int64) ([]Role, error) {
	seen := make(map[int64]struct{}, len(roleIDs))
	ids := make([]int64, 0, len(roleIDs))
	for _, id := range roleIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err := s.activeRole(ctx, id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := s.store.SyncUserRoles(ctx, userID, ids); err != nil {
		return nil, err
	}
	s.logger.Info("rbac user roles synced", slog.Int64("user_id", userID), slog.Any("role_ids", ids))
	return s.store.RolesForUser(ctx, userID, false)
}

// RolesForUser lists the user's active roles.
func (s *Service) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	return s.store.RolesForUser(ctx, userID, false)
}

// LoadActor builds the Actor for a user from its active roles.
func (s *Service) LoadActor(ctx context.Context, userID int64) (*Actor, error) {
	if userID <= 0 {
		return nil, errors.New("rbac: actor id must be positive")
	}
	roles, err := s.store.RolesForUser(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("rbac: load actor %d: %w", userID, err)
	}
	refs := make([]RoleRef, 0, len(roles))
	for _, r := range roles {
		refs = append(refs, RoleRef{ID: r.ID, Slug: r.Slug})
	}
	return &Actor{ID: userID, Roles: refs, AdminRole: s.adminRole}, nil
}

// EnsureDefaultVocabulary defines every known resource that has no vocabulary yet.
// Existing vocabularies are left untouched.
func (s *Service) EnsureDefaultVocabulary(ctx context.Context) error {
	for _, resource := range Resources() {
		_, err := s.store.GetPermission(ctx, resource)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrUnknownResource) {
			return err
		}
		actions := make([]string, 0, 8)
		for _, a := range DefaultVocabulary(resource) {
			actions = append(actions, string(a))
		}
		if _, err := s.DefinePermission(ctx, resource, actions, ""); err != nil {
			return fmt.Errorf("define %s: %w", resource, err)
		}
	}
	return nil
}
