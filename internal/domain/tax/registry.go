package tax

import (
	"sync"

	"github.com/erp/ledger/internal/domain/shared"
)

// PolicyRegistry holds jurisdiction configurations keyed by jurisdiction.
// New tax regimes are added here without touching journal or invoice logic.
type PolicyRegistry struct {
	mu      sync.RWMutex
	configs map[string]JurisdictionConfig
}

// NewPolicyRegistry creates an empty policy registry
func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{
		configs: make(map[string]JurisdictionConfig),
	}
}

// Register adds or replaces the configuration for a jurisdiction
func (r *PolicyRegistry) Register(cfg JurisdictionConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Key] = cfg
}

// Get returns the configuration for a jurisdiction
func (r *PolicyRegistry) Get(key string) (JurisdictionConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[key]
	if !ok {
		return JurisdictionConfig{}, shared.ErrNotFound
	}
	return cfg, nil
}

// Keys returns all registered jurisdiction keys
func (r *PolicyRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.configs))
	for k := range r.configs {
		keys = append(keys, k)
	}
	return keys
}
