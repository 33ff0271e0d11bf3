package policy

import (
	"context"

	"github.com/folio-cms/folio/internal/rbac"
)

func oneOf(action rbac.Action, actions ...rbac.Action) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// PublicRead lets anyone, guests included, list and view live instances.
// Soft deleted instances still need the generic view grant.
func PublicRead() Override {
	return func(_ context.Context, _ *rbac.Actor, action rbac.Action, target *rbac.Target) Decision {
		if !oneOf(action, rbac.ActionViewAny, rbac.ActionView) {
			return Abstain
		}
		if target != nil && target.Trashed {
			return Abstain
		}
		return Allow
	}
}

// OwnerMayModify lets the owning user update and delete their own instance.
func OwnerMayModify() Override {
	return func(_ context.Context, actor *rbac.Actor, action rbac.Action, target *rbac.Target) Decision {
		if !oneOf(action, rbac.ActionUpdate, rbac.ActionDelete) {
			return Abstain
		}
		if !actor.Authenticated() || target == nil || target.OwnerID == 0 {
			return Abstain
		}
		if target.OwnerID == actor.ID {
			return Allow
		}
		return Abstain
	}
}

// ProtectSuperAdmin refuses changes to the super admin account by anyone else,
// administrators included.
func ProtectSuperAdmin() Override {
	return func(_ context.Context, actor *rbac.Actor, action rbac.Action, target *rbac.Target) Decision {
		if target == nil || target.ID != rbac.SuperAdminID {
			return Abstain
		}
		if !oneOf(action, rbac.ActionUpdate, rbac.ActionDelete, rbac.ActionForceDelete, rbac.ActionAssignRole) {
			return Abstain
		}
		if actor.Authenticated() && actor.ID == target.ID {
			return Abstain
		}
		return Deny
	}
}

// AnyoneMayCreate lets guests create instances, e.g. public contact forms.
func AnyoneMayCreate() Override {
	return func(_ context.Context, _ *rbac.Actor, action rbac.Action, _ *rbac.Target) Decision {
		if action == rbac.ActionCreate {
			return Allow
		}
		return Abstain
	}
}

// DenyAll retires a resource: nothing is allowed, for anyone.
func DenyAll() Override {
	return func(context.Context, *rbac.Actor, rbac.Action, *rbac.Target) Decision {
		return Deny
	}
}
