package source

import (
	"context"

	"github.com/rotisserie/eris"
)

// Registry maps collector names to their implementations.
type Registry struct {
	collectors map[string]Collector
	order      []string // insertion order for deterministic iteration
}

// NewRegistry creates an empty collector registry.
func NewRegistry() *Registry {
	return &Registry{collectors: make(map[string]Collector)}
}

// Register adds a collector to the registry.
func (r *Registry) Register(c Collector) {
	name := c.Name()
	r.collectors[name] = c
	r.order = append(r.order, name)
}

// Get returns a collector by name.
func (r *Registry) Get(name string) (Collector, error) {
	c, ok := r.collectors[name]
	if !ok {
		return nil, eris.Errorf("source: unknown collector %q", name)
	}
	return c, nil
}

// Select returns the named collectors, or all of them when names is empty.
func (r *Registry) Select(names []string) ([]Collector, error) {
	if len(names) == 0 {
		return r.All(), nil
	}
	result := make([]Collector, 0, len(names))
	for _, name := range names {
		c, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

// All returns all collectors in registration order.
func (r *Registry) All() []Collector {
	result := make([]Collector, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.collectors[name])
	}
	return result
}

// Discover returns the descriptors of every collector in registration
// order: the full set of documents a complete run would pull.
func (r *Registry) Discover(ctx context.Context) ([]Descriptor, error) {
	var result []Descriptor
	for _, name := range r.order {
		descs, err := r.collectors[name].Discover(ctx)
		if err != nil {
			return nil, eris.Wrapf(err, "source: discover %s", name)
		}
		result = append(result, descs...)
	}
	return result, nil
}
