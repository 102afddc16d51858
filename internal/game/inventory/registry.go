package inventory

import (
	"fmt"
	"sort"
)

// Registry holds item definitions indexed by id. It is an explicit
// collaborator: every inventory resolves stacks against the registry it was
// constructed with.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry returns an empty Registry.
//
// Postcondition: all internal maps are initialised.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Define validates d and registers it, overwriting any definition with the
// same id.
//
// Postcondition: Definition(d.ID) returns d's values.
func (r *Registry) Define(d Definition) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("inventory: Registry.Define: %s: %w", err, ErrInvalidArgument)
	}
	stored := d
	stored.Metadata = copyMetadata(d.Metadata)
	if stored.Label == "" {
		stored.Label = stored.ID
	}
	r.defs[stored.ID] = &stored
	return nil
}

// Definition returns a copy of the definition for the given id and whether
// it was found. The OnUse callback is shared by reference.
func (r *Registry) Definition(id string) (Definition, bool) {
	d, ok := r.defs[id]
	if !ok {
		return Definition{}, false
	}
	out := *d
	out.Metadata = copyMetadata(d.Metadata)
	return out, true
}

// Has reports whether the id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.defs[id]
	return ok
}

// BindUse attaches fn as the OnUse callback of an already-registered
// definition. Content loaders register definitions first and bind scripted
// hooks afterwards.
func (r *Registry) BindUse(id string, fn UseFunc) error {
	d, ok := r.defs[id]
	if !ok {
		return fmt.Errorf("inventory: Registry.BindUse: unknown definition %q: %w", id, ErrNotFound)
	}
	d.OnUse = fn
	return nil
}

// IDs returns all registered ids, sorted.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.defs))
	for id := range r.defs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.defs)
}

// LoadDefinitions loads every definition from dir into the registry.
//
// Postcondition: on error the registry may hold a prefix of the directory's
// definitions.
func (r *Registry) LoadDefinitions(dir string) (int, error) {
	defs, err := LoadDefinitions(dir)
	if err != nil {
		return 0, fmt.Errorf("inventory: Registry.LoadDefinitions: %w", err)
	}
	for _, d := range defs {
		if err := r.Define(*d); err != nil {
			return 0, err
		}
	}
	return len(defs), nil
}
