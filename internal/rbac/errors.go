package rbac

import (
	"fmt"
	"strings"

	"github.com/folio-cms/folio/internal/platform/httpx"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = fmt.Errorf("rbac: %w", httpx.ErrNotFound)
	// ErrUnknownResource indicates a resource key without a permission row.
	ErrUnknownResource = fmt.Errorf("rbac: unknown resource: %w", httpx.ErrValidation)
	// ErrUnknownAction indicates an action outside the resource vocabulary.
	ErrUnknownAction = fmt.Errorf("rbac: unknown action: %w", httpx.ErrValidation)
	// ErrInvalidInput indicates malformed administration input.
	ErrInvalidInput = fmt.Errorf("rbac: invalid input: %w", httpx.ErrValidation)
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = fmt.Errorf("rbac: conflict: %w", httpx.ErrDuplicate)
	// ErrRoleTrashed indicates an operation on a soft deleted role.
	ErrRoleTrashed = fmt.Errorf("rbac: role is trashed: %w", httpx.ErrValidation)
	// ErrForbidden indicates a denied authorization check.
	ErrForbidden = fmt.Errorf("rbac: %w", httpx.ErrForbidden)
)

// UnknownActionError lists the actions rejected for a resource.
type UnknownActionError struct {
	Resource string
	Actions  []Action
}

func (e *UnknownActionError) Error() string {
	names := make([]string, len(e.Actions))
	for i, a := range e.Actions {
		names[i] = string(a)
	}
	return fmt.Sprintf("rbac: unknown action(s) %s for resource %q", strings.Join(names, ", "), e.Resource)
}

// Unwrap lets errors.Is match ErrUnknownAction.
func (e *UnknownActionError) Unwrap() error {
	return ErrUnknownAction
}

// ForbiddenError carries the denied resource and action.
type ForbiddenError struct {
	Resource string
	Action   Action
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("rbac: %s on %s is not allowed", e.Action, e.Resource)
}

// Unwrap lets errors.Is match ErrForbidden.
func (e *ForbiddenError) Unwrap() error {
	return ErrForbidden
}
