package dialect

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps dialect names to dialects.
type Registry struct {
	mu       sync.RWMutex
	dialects map[string]*Dialect
}

// NewRegistry returns a registry holding the built-in dialects.
func NewRegistry() *Registry {
	r := &Registry{dialects: make(map[string]*Dialect)}
	for _, d := range []*Dialect{X937(), X9100(), USBank(), CassCommercialBank(), CommerceBank()} {
		r.Register(d)
	}
	return r
}

// Register adds or replaces a dialect.
func (r *Registry) Register(d *Dialect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialects[strings.ToLower(d.Name)] = d
}

// Lookup finds a dialect by name, ignoring case.
func (r *Registry) Lookup(name string) (*Dialect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.dialects[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q (known: %s)", name, strings.Join(r.namesLocked(), ", "))
	}
	return d, nil
}

// Names lists the registered dialect names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.dialects))
	for _, d := range r.dialects {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}
