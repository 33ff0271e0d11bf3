// Package policy layers per-resource rules on top of the generic resolver.
//
// A Policy binds an explicit resource key to an ordered list of overrides.
// Overrides are evaluated first; the first one that does not abstain decides.
// When every override abstains the generic resolver decides.
package policy

import (
	"context"

	"github.com/folio-cms/folio/internal/rbac"
)

// Decision is the outcome of one override.
type Decision int

const (
	// Abstain defers to the next override or the generic resolver.
	Abstain Decision = iota
	// Allow grants the action without consulting the resolver.
	Allow
	// Deny refuses the action regardless of grants.
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	}
	return "abstain"
}

// Override is a resource-specific rule.
type Override func(ctx context.Context, actor *rbac.Actor, action rbac.Action, target *rbac.Target) Decision

// Checker is the generic decision point a Policy falls back to.
type Checker interface {
	Can(ctx context.Context, actor *rbac.Actor, resource string, action rbac.Action) bool
}

// Policy guards one resource type.
type Policy struct {
	Resource  string
	Overrides []Override
}

// New builds a policy for resource with the given overrides in precedence order.
func New(resource string, overrides ...Override) Policy {
	return Policy{Resource: resource, Overrides: overrides}
}

// Evaluate runs the overrides and returns the first non-abstaining decision.
func (p Policy) Evaluate(ctx context.Context, actor *rbac.Actor, action rbac.Action, target *rbac.Target) Decision {
	for _, o := range p.Overrides {
		if d := o(ctx, actor, action, target); d != Abstain {
			return d
		}
	}
	return Abstain
}

// Allows decides the action for the actor.
func (p Policy) Allows(ctx context.Context, checker Checker, actor *rbac.Actor, action rbac.Action, target *rbac.Target) bool {
	switch p.Evaluate(ctx, actor, action, target) {
	case Allow:
		return true
	case Deny:
		return false
	}
	return checker.Can(ctx, actor, p.Resource, action)
}
