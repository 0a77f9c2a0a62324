package fields

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/stencilcms/stencil/domain/schema"
)

// ErrUnknownType is returned when a field type name is not registered.
var ErrUnknownType = errors.New("unknown field type")

// Registry maps field type names to their capability bundles. It is
// populated at process start and treated as immutable once serving
// begins; Freeze makes that explicit.
type Registry struct {
	mu     sync.RWMutex
	types  map[string]Type
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Type)}
}

// Builtin returns a registry with all built-in field types registered.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register(Text{})
	r.Register(Number{})
	r.Register(Boolean{})
	r.Register(DateTime{})
	r.Register(JSON{})
	r.Register(Reference{})
	return r
}

// Register adds a field type. Registering after Freeze or registering a
// duplicate name panics: both are wiring mistakes at process start, not
// runtime conditions.
func (r *Registry) Register(t Type) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		panic("fields: Register called on frozen registry")
	}
	if _, exists := r.types[t.Name()]; exists {
		panic(fmt.Sprintf("fields: duplicate field type %q", t.Name()))
	}
	r.types[t.Name()] = t
}

// Freeze marks the registry immutable. Called once wiring is complete.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Lookup resolves a field type by name.
func (r *Registry) Lookup(name string) (Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return t, nil
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DocumentShape is the composed wire type of a schema's documents: the
// per-field input, output, and filter shapes the dynamic API exposes.
type DocumentShape struct {
	Input  map[string]Shape
	Output map[string]Shape
	Where  map[string]Shape
}

// DocumentShapes composes the capability shapes of a schema's active
// fields. The resolution cache is shared across fields so reference
// targets are resolved once per composition.
func (r *Registry) DocumentShapes(sc schema.Schema, all []schema.Schema) (DocumentShape, error) {
	ds := DocumentShape{
		Input:  make(map[string]Shape, len(sc.Fields)),
		Output: make(map[string]Shape, len(sc.Fields)),
		Where:  make(map[string]Shape, len(sc.Fields)),
	}
	cache := make(map[string]Shape)
	for _, f := range sc.Fields {
		t, err := r.Lookup(f.Type)
		if err != nil {
			return DocumentShape{}, err
		}
		ds.Input[f.Name] = t.InputShape(f)
		ds.Output[f.Name] = t.OutputShape(f, all, cache)
		ds.Where[f.Name] = t.WhereShape(f)
	}
	return ds, nil
}
