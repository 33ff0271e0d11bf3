package rbac

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// Action names an operation on a resource.
type Action string

// Standard actions recognised by every resource.
const (
	ActionViewAny     Action = "viewAny"
	ActionView        Action = "view"
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionRestore     Action = "restore"
	ActionForceDelete Action = "forceDelete"

	// ActionAssignRole is only part of the user vocabulary.
	ActionAssignRole Action = "assignRole"
)

var actionNamePattern = regexp.MustCompile(`^[a-zA-Z]+$`)

// StandardActions returns the seven CRUD actions in display order.
func StandardActions() []Action {
	return []Action{
		ActionViewAny,
		ActionView,
		ActionCreate,
		ActionUpdate,
		ActionDelete,
		ActionRestore,
		ActionForceDelete,
	}
}

// ParseAction normalises surrounding whitespace and reports whether the name is well formed.
func ParseAction(raw string) (Action, bool) {
	raw = strings.TrimSpace(raw)
	if !actionNamePattern.MatchString(raw) {
		return "", false
	}
	return Action(raw), true
}

// ActionSet is an unordered set of actions.
type ActionSet map[Action]struct{}

// NewActionSet builds a set from the provided actions, dropping duplicates.
func NewActionSet(actions ...Action) ActionSet {
	set := make(ActionSet, len(actions))
	for _, a := range actions {
		if a == "" {
			continue
		}
		set[a] = struct{}{}
	}
	return set
}

// ActionSetFromStrings converts stored string slices to a set.
func ActionSetFromStrings(values []string) ActionSet {
	set := make(ActionSet, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		set[Action(v)] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s ActionSet) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// Len returns the number of actions in the set.
func (s ActionSet) Len() int {
	return len(s)
}

// Union returns a new set holding the actions of both sets.
func (s ActionSet) Union(other ActionSet) ActionSet {
	out := make(ActionSet, len(s)+len(other))
	for a := range s {
		out[a] = struct{}{}
	}
	for a := range other {
		out[a] = struct{}{}
	}
	return out
}

// Intersect returns the actions present in both sets.
func (s ActionSet) Intersect(other ActionSet) ActionSet {
	out := make(ActionSet)
	for a := range s {
		if other.Has(a) {
			out[a] = struct{}{}
		}
	}
	return out
}

// Difference returns the actions of s that are absent from other.
func (s ActionSet) Difference(other ActionSet) ActionSet {
	out := make(ActionSet)
	for a := range s {
		if !other.Has(a) {
			out[a] = struct{}{}
		}
	}
	return out
}

// SubsetOf reports whether every action of s is in other.
func (s ActionSet) SubsetOf(other ActionSet) bool {
	for a := range s {
		if !other.Has(a) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold the same actions.
func (s ActionSet) Equal(other ActionSet) bool {
	return len(s) == len(other) && s.SubsetOf(other)
}

// Sorted returns the actions ordered alphabetically.
func (s ActionSet) Sorted() []Action {
	out := make([]Action, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted actions as plain strings, the storage format.
func (s ActionSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, a := range sorted {
		out[i] = string(a)
	}
	return out
}

// Clone copies the set.
func (s ActionSet) Clone() ActionSet {
	out := make(ActionSet, len(s))
	for a := range s {
		out[a] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s ActionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes an array of action names.
func (s *ActionSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = ActionSetFromStrings(values)
	return nil
}
