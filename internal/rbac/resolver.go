package rbac

import (
	"context"
	"errors"
	"log/slog"
)

// Authorizer answers instance-aware authorization questions.
type Authorizer interface {
	Allows(ctx context.Context, actor *Actor, resource string, action Action, target *Target) bool
}

// DecisionObserver receives every decision taken by the Resolver.
type DecisionObserver interface {
	ObserveDecision(resource string, action Action, allowed bool)
}

// Resolver is the generic decision point: super admin, admin, then the union
// of the actor's role grants. It never fails; errors deny.
type Resolver struct {
	service  *Service
	logger   *slog.Logger
	observer DecisionObserver
}

var _ Authorizer = (*Resolver)(nil)

// NewResolver constructs a Resolver.
func NewResolver(service *Service, logger *slog.Logger, observer DecisionObserver) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{service: service, logger: logger, observer: observer}
}

// Can reports whether the actor may perform action on resource.
func (r *Resolver) Can(ctx context.Context, actor *Actor, resource string, action Action) bool {
	allowed := r.decide(ctx, actor, resource, action)
	if r.observer != nil {
		r.observer.ObserveDecision(resource, action, allowed)
	}
	return allowed
}

// Allows ignores the target; instance rules live in the policy layer.
func (r *Resolver) Allows(ctx context.Context, actor *Actor, resource string, action Action, _ *Target) bool {
	return r.Can(ctx, actor, resource, action)
}

func (r *Resolver) decide(ctx context.Context, actor *Actor, resource string, action Action) bool {
	if !actor.Authenticated() {
		return false
	}
	if actor.IsSuperAdmin() || actor.IsAdmin() {
		return true
	}
	if !r.knownResource(ctx, actor, resource) {
		return false
	}
	for _, roleID := range actor.RoleIDs() {
		actions, err := r.service.actionsFor(ctx, roleID, resource)
		if err != nil {
			r.logger.Error("rbac load grant",
				slog.Int64("user_id", actor.ID),
				slog.Int64("role_id", roleID),
				slog.String("resource", resource),
				slog.Any("error", err),
			)
			continue
		}
		if actions.Has(action) {
			return true
		}
	}
	return false
}

// Effective returns every action the actor may perform on the resource
// through the generic path.
func (r *Resolver) Effective(ctx context.Context, actor *Actor, resource string) ActionSet {
	if !actor.Authenticated() {
		return ActionSet{}
	}
	if actor.IsSuperAdmin() || actor.IsAdmin() {
		if perm, err := r.service.permission(ctx, resource); err == nil {
			return perm.Actions.Clone()
		}
		return NewActionSet(DefaultVocabulary(resource)...)
	}
	if !r.knownResource(ctx, actor, resource) {
		return ActionSet{}
	}
	out := ActionSet{}
	for _, roleID := range actor.RoleIDs() {
		actions, err := r.service.actionsFor(ctx, roleID, resource)
		if err != nil {
			r.logger.Error("rbac load grant", slog.Int64("role_id", roleID), slog.String("resource", resource), slog.Any("error", err))
			continue
		}
		out = out.Union(actions)
	}
	return out
}

func (r *Resolver) knownResource(ctx context.Context, actor *Actor, resource string) bool {
	_, err := r.service.permission(ctx, resource)
	if err == nil {
		return true
	}
	if errors.Is(err, ErrUnknownResource) {
		r.logger.Warn("rbac unknown resource", slog.String("resource", resource), slog.Int64("user_id", actor.ID))
	} else {
		r.logger.Error("rbac load permission", slog.String("resource", resource), slog.Any("error", err))
	}
	return false
}
