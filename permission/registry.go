package permission

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

var (
	ErrFrozen           = errors.New("permission: registry frozen")
	ErrDuplicatePolicy  = errors.New("permission: policy already registered")
	ErrInvalidPolicy    = errors.New("permission: invalid policy")
	ErrPolicyNotDefined = errors.New("permission: policy not registered")
)

// Registry names the policies an application enforces. Register them at
// startup, then Freeze; lookups after that never block on writers.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
	frozen   bool
}

func NewRegistry() *Registry {
	return &Registry{policies: map[string]Policy{}}
}

// Register adds a policy allowing any one of roles.
func (r *Registry) Register(name string, roles ...string) error {
	if name == "" || slices.Contains(roles, "") {
		return fmt.Errorf("%w: empty policy or role name", ErrInvalidPolicy)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.frozen:
		return ErrFrozen
	case r.policies[name].Name != "":
		return fmt.Errorf("%w: %s", ErrDuplicatePolicy, name)
	}
	r.policies[name] = Policy{Name: name, Required: slices.Clone(roles)}
	return nil
}

// Lookup returns a copy of the named policy.
func (r *Registry) Lookup(name string) (Policy, error) {
	r.mu.RLock()
	p, ok := r.policies[name]
	r.mu.RUnlock()
	if !ok {
		return Policy{}, fmt.Errorf("%w: %s", ErrPolicyNotDefined, name)
	}
	p.Required = slices.Clone(p.Required)
	return p, nil
}

// MustLookup is Lookup for startup wiring, where a missing policy is a
// programming error.
func (r *Registry) MustLookup(name string) Policy {
	p, err := r.Lookup(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Allows reports whether presented satisfies the named policy. Unknown
// names deny.
func (r *Registry) Allows(name string, presented []string) bool {
	p, err := r.Lookup(name)
	return err == nil && p.Allows(presented)
}

func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Names lists registered policies in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.policies))
}
