package core

import (
	"fmt"
	"sync"
)

// SourceDefinition describes one base registry to load on refresh.
type SourceDefinition struct {
	Key      TypeKey
	Label    string
	Location string
	Encoding string // empty means the loader default
}

// Descriptor returns the merge descriptor for the source.
func (d SourceDefinition) Descriptor() SourceDescriptor {
	label := d.Label
	if label == "" {
		label = LabelForTypeKey(d.Key)
	}
	return SourceDescriptor{Key: d.Key, Label: label}
}

// Registry holds the base registries in registration order. Order matters:
// earlier sources win identity conflicts during merge.
type Registry struct {
	mu    sync.RWMutex
	defs  map[TypeKey]SourceDefinition
	order []TypeKey
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[TypeKey]SourceDefinition)}
}

// Register adds a source definition.
// Returns an error if the key is unknown or already registered.
func (r *Registry) Register(def SourceDefinition) error {
	if _, ok := ParseTypeKey(string(def.Key)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTypeKey, def.Key)
	}
	if def.Location == "" {
		return fmt.Errorf("source %s: empty location", def.Key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Key]; exists {
		return fmt.Errorf("source already registered: %s", def.Key)
	}
	r.defs[def.Key] = def
	r.order = append(r.order, def.Key)
	return nil
}

// Get returns a source definition by key.
func (r *Registry) Get(key TypeKey) (SourceDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[key]
	return def, ok
}

// All returns every definition in registration order.
func (r *Registry) All() []SourceDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SourceDefinition, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.defs[k])
	}
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
