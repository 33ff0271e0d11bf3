package policy

import (
	"context"
	"log/slog"

	"github.com/folio-cms/folio/internal/rbac"
)

// Gate is the authorization entry point used by handlers and services.
type Gate struct {
	registry *Registry
	checker  Checker
	logger   *slog.Logger
}

var _ rbac.Authorizer = (*Gate)(nil)

// NewGate composes the registry with the generic checker.
func NewGate(registry *Registry, checker Checker, logger *slog.Logger) *Gate {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{registry: registry, checker: checker, logger: logger}
}

// Allows reports whether the actor may perform the action, optionally on an instance.
func (g *Gate) Allows(ctx context.Context, actor *rbac.Actor, resource string, action rbac.Action, target *rbac.Target) bool {
	p, _ := g.registry.Lookup(resource)
	return p.Allows(ctx, g.checker, actor, action, target)
}

// Authorize is Allows turned into an error for service code.
func (g *Gate) Authorize(ctx context.Context, actor *rbac.Actor, resource string, action rbac.Action, target *rbac.Target) error {
	if g.Allows(ctx, actor, resource, action, target) {
		return nil
	}
	var userID int64
	if actor != nil {
		userID = actor.ID
	}
	g.logger.Info("policy denied",
		slog.String("resource", resource),
		slog.String("action", string(action)),
		slog.Int64("user_id", userID),
	)
	return &rbac.ForbiddenError{Resource: resource, Action: action}
}

// Resources lists the keys the snapshot covers.
func (g *Gate) Resources() []string {
	return g.registry.Resources()
}
