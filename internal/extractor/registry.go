package extractor

import "fmt"

// Registry holds the set of named backends a deployment has configured
// (local batch LLM, remote batch LLM, …) behind one uniform contract.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry builds an empty backend Registry.
func NewRegistry() *Registry {
	return &Registry{backends: map[string]Backend{}}
}

// Register adds or replaces a named backend.
func (r *Registry) Register(b Backend) {
	r.backends[b.Name()] = b
}

// Get returns the named backend, or an error listing the configured set.
func (r *Registry) Get(name string) (Backend, error) {
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("extractor: unknown backend %q (configured: %v)", name, r.names())
	}
	return b, nil
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}
