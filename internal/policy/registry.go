package policy

import (
	"sort"
	"sync"

	"github.com/folio-cms/folio/internal/rbac"
)

// Registry maps resource keys to policies.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]Policy)}
}

// Register adds or replaces the policy for its resource.
func (r *Registry) Register(p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.Resource] = p
}

// Lookup returns the registered policy; unknown keys get a plain generic policy.
func (r *Registry) Lookup(resource string) (Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[resource]
	if !ok {
		return New(resource), false
	}
	return p, true
}

// Resources lists the registered keys alphabetically.
func (r *Registry) Resources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.policies))
	for k := range r.policies {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry registers the policies of every portfolio resource.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// Plain generic checks.
	for _, key := range []string{
		rbac.ResourceBlog,
		rbac.ResourceProject,
		rbac.ResourceDeployment,
		rbac.ResourceDeveloper,
		rbac.ResourceRealEstateProject,
		rbac.ResourceGiveaway,
		rbac.ResourceRole,
		rbac.ResourcePermission,
	} {
		r.Register(New(key))
	}

	r.Register(New(rbac.ResourceProperty, PublicRead()))
	r.Register(New(rbac.ResourceProjectCategory, PublicRead()))

	r.Register(New(rbac.ResourceExperience, OwnerMayModify()))
	r.Register(New(rbac.ResourceComment, OwnerMayModify()))
	r.Register(New(rbac.ResourceGuestbookEntry, OwnerMayModify()))

	r.Register(New(rbac.ResourceUser, ProtectSuperAdmin()))
	r.Register(New(rbac.ResourceInquiry, AnyoneMayCreate()))
	r.Register(New(rbac.ResourceSkill, DenyAll()))

	return r
}
