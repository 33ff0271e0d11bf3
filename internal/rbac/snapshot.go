package rbac

import "context"

// ActionFlags is the fixed per-resource record delivered to the presentation layer.
type ActionFlags struct {
	ViewAny     bool `json:"viewAny"`
	View        bool `json:"view"`
	Create      bool `json:"create"`
	Update      bool `json:"update"`
	Delete      bool `json:"delete"`
	Restore     bool `json:"restore"`
	ForceDelete bool `json:"forceDelete"`
}

// AllFlags returns a record with every action allowed.
func AllFlags() ActionFlags {
	return ActionFlags{true, true, true, true, true, true, true}
}

// Get reads the flag for a standard action; other actions read as false.
func (f ActionFlags) Get(action Action) bool {
	switch action {
	case ActionViewAny:
		return f.ViewAny
	case ActionView:
		return f.View
	case ActionCreate:
		return f.Create
	case ActionUpdate:
		return f.Update
	case ActionDelete:
		return f.Delete
	case ActionRestore:
		return f.Restore
	case ActionForceDelete:
		return f.ForceDelete
	}
	return false
}

func (f *ActionFlags) set(action Action, v bool) {
	switch action {
	case ActionViewAny:
		f.ViewAny = v
	case ActionView:
		f.View = v
	case ActionCreate:
		f.Create = v
	case ActionUpdate:
		f.Update = v
	case ActionDelete:
		f.Delete = v
	case ActionRestore:
		f.Restore = v
	case ActionForceDelete:
		f.ForceDelete = v
	}
}

// Any reports whether at least one action is allowed.
func (f ActionFlags) Any() bool {
	return f.ViewAny || f.View || f.Create || f.Update || f.Delete || f.Restore || f.ForceDelete
}

// Snapshot is the advisory, per-request permission matrix for UI affordances.
// The server re-checks every mutating request regardless of its content.
type Snapshot struct {
	IsAdmin     bool                   `json:"isAdmin"`
	Permissions map[string]ActionFlags `json:"permissions"`
}

// BuildSnapshot resolves the seven standard actions of each resource for the
// actor through the same authorizer that guards requests.
func BuildSnapshot(ctx context.Context, authz Authorizer, actor *Actor, resources []string) Snapshot {
	snap := Snapshot{
		IsAdmin:     actor.IsSuperAdmin() || actor.IsAdmin(),
		Permissions: make(map[string]ActionFlags, len(resources)),
	}
	for _, resource := range resources {
		var flags ActionFlags
		for _, action := range StandardActions() {
			flags.set(action, authz.Allows(ctx, actor, resource, action, nil))
		}
		snap.Permissions[resource] = flags
	}
	return snap
}

// Can looks up one action. Admin snapshots allow everything.
func (s Snapshot) Can(resource string, action Action) bool {
	if s.IsAdmin {
		return true
	}
	return s.Permissions[resource].Get(action)
}

// CanAny reports whether any action on the resource is allowed.
func (s Snapshot) CanAny(resource string) bool {
	if s.IsAdmin {
		return true
	}
	return s.Permissions[resource].Any()
}

// For returns the record of one resource.
func (s Snapshot) For(resource string) ActionFlags {
	if s.IsAdmin {
		return AllFlags()
	}
	return s.Permissions[resource]
}
