package tenant

import (
	"fmt"
	"sort"
	"sync"
)

// UnknownTenantError is returned when a codename has no registered
// Runtime, per spec §4.13.
type UnknownTenantError struct {
	Codename string
}

func (e *UnknownTenantError) Error() string {
	return fmt.Sprintf("unknown tenant %q", e.Codename)
}

// Registry is the in-memory codename -> Runtime map described in spec
// §4.13.
type Registry struct {
	mu       sync.RWMutex
	runtimes map[string]*Runtime
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{runtimes: make(map[string]*Runtime)}
}

// Register adds or replaces a tenant's Runtime.
func (reg *Registry) Register(codename string, runtime *Runtime) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.runtimes[codename] = runtime
}

// Unregister removes a tenant's Runtime, if present.
func (reg *Registry) Unregister(codename string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.runtimes, codename)
}

// Resolve looks up a tenant's Runtime, or an *UnknownTenantError.
func (reg *Registry) Resolve(codename string) (*Runtime, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	runtime, ok := reg.runtimes[codename]
	if !ok {
		return nil, &UnknownTenantError{Codename: codename}
	}
	return runtime, nil
}

// Codenames returns every registered tenant codename, sorted, for
// dashboards.
func (reg *Registry) Codenames() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]string, 0, len(reg.runtimes))
	for name := range reg.runtimes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HealthSnapshot aggregates every registered tenant's health.
func (reg *Registry) HealthSnapshot() map[string]HealthStatus {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make(map[string]HealthStatus, len(reg.runtimes))
	for name, runtime := range reg.runtimes {
		out[name] = runtime.Health()
	}
	return out
}

// ShutdownAll stops every registered tenant's scheduler and releases its
// segment handles, collecting (not stopping on) individual errors.
func (reg *Registry) ShutdownAll() []error {
	reg.mu.RLock()
	runtimes := make([]*Runtime, 0, len(reg.runtimes))
	for _, runtime := range reg.runtimes {
		runtimes = append(runtimes, runtime)
	}
	reg.mu.RUnlock()

	var errs []error
	for _, runtime := range runtimes {
		if err := runtime.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
