package rls

import (
	"sync"
)

// Policy is structured row-security metadata for one relation: rows are
// visible to a session when the owner column equals the session's user id.
// Roles that bypass enforcement are decided by the session, not the policy.
type Policy struct {
	Schema      string `json:"schema" mapstructure:"schema"`
	Table       string `json:"table" mapstructure:"table"`
	OwnerColumn string `json:"ownerColumn" mapstructure:"ownerColumn"`
	// AnonRead lets anonymous sessions read the table unrestricted while
	// still scoping authenticated sessions to their own rows.
	AnonRead bool `json:"anonRead" mapstructure:"anonRead"`
}

// Registry holds policies keyed by schema.table. Lookups happen per request;
// registration happens at startup and on config reload.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

func NewRegistry(policies ...Policy) *Registry {
	r := &Registry{policies: make(map[string]Policy, len(policies))}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.Schema+"."+p.Table] = p
}

func (r *Registry) Lookup(schemaName, table string) (Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[schemaName+"."+table]
	return p, ok
}
