package resource

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/eslayer/internal/domain"
)

// Registry is the immutable set of resources known to the process.
// Changing it means building a new Registry.
type Registry struct {
	defs  map[string]Definition
	names []string
}

// NewRegistry indexes defs by name. Duplicate names are rejected.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if _, dup := r.defs[d.Name()]; dup {
			return nil, fmt.Errorf("resource %s: %w", d.Name(), domain.ErrAlreadyExists)
		}
		r.defs[d.Name()] = d
		r.names = append(r.names, d.Name())
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (Definition, error) {
	d, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("resource %s: %w", name, domain.ErrNotFound)
	}
	return d, nil
}

// Names returns registered names, sorted.
func (r *Registry) Names() []string { return append([]string(nil), r.names...) }

// All returns every definition in name order.
func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.defs[n])
	}
	return out
}

// Len returns the number of resources.
func (r *Registry) Len() int { return len(r.names) }
