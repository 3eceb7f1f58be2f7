package sites

import (
	"errors"
	"fmt"
)

// Registry errors.
var (
	ErrUnknownStore   = errors.New("unknown store")
	ErrDuplicateStore = errors.New("store already registered")
)

// Registry maps store identifiers to adapters, preserving registration order.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry builds a registry from adapters. Registering a name twice is an error.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}

	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Default returns the registry of built-in store adapters.
func Default() *Registry {
	r, err := NewRegistry(NewWoolies(), NewColes(), NewAldi())
	if err != nil {
		panic(err)
	}

	return r
}

// Register adds an adapter.
func (r *Registry) Register(a Adapter) error {
	name := a.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStore, name)
	}

	r.adapters[name] = a
	r.order = append(r.order, name)

	return nil
}

// Get returns the adapter for store.
func (r *Registry) Get(store string) (Adapter, error) {
	a, ok := r.adapters[store]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, store)
	}

	return a, nil
}

// Names returns store identifiers in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)

	return names
}

// Has reports whether store is registered.
func (r *Registry) Has(store string) bool {
	_, ok := r.adapters[store]
	return ok
}
