// Package fields provides the field type registry and the built-in
// field types. A field type is a capability bundle: it describes the
// input/output/filter shape of a field, supplies its default value, and
// validates document values. New field types are added by registering a
// new Type; the registry's dispatch never changes.
package fields

import (
	"encoding/json"

	"github.com/stencilcms/stencil/domain/schema"
)

// Kind is the wire shape of a field value, used by the dynamic API
// builder to compose document input/output/filter types.
type Kind string

const (
	KindString    Kind = "string"
	KindInt       Kind = "int"
	KindFloat     Kind = "float"
	KindBool      Kind = "bool"
	KindDateTime  Kind = "datetime"
	KindJSON      Kind = "json"
	KindReference Kind = "reference"
)

// Shape describes the type of a field on the wire. For references, Ref
// names the target schema.
type Shape struct {
	Kind Kind   `json:"kind"`
	Ref  string `json:"ref,omitempty"`
}

// Type is the capability bundle a field type must provide.
type Type interface {
	// Name is the registry discriminator (e.g. "number").
	Name() string

	// Title is the human-readable name shown in admin UIs.
	Title() string

	// Description explains the field type.
	Description() string

	// DefaultValue returns the value backfilled into existing documents
	// when a field of this type is added without an explicit default.
	DefaultValue() any

	// InputShape describes the accepted value when writing a document.
	InputShape(f schema.Field) Shape

	// OutputShape describes the value when reading a document. Types
	// that reference other schemas resolve them here; the cache keeps
	// resolution single-pass across a rebuild.
	OutputShape(f schema.Field, all []schema.Schema, cache map[string]Shape) Shape

	// WhereShape describes the value accepted in filter predicates.
	WhereShape(f schema.Field) Shape

	// ValidateValue checks a raw JSON document value against the
	// field's settings. JSON null is always accepted.
	ValidateValue(raw json.RawMessage, settings schema.Settings) error
}

// Hooks is implemented by field types that react to field lifecycle
// changes. Optional; the lifecycle service type-asserts for it.
type Hooks interface {
	OnFieldCreate(f schema.Field) error
	OnFieldUpdate(f schema.Field) error
}

// isNull reports whether raw is absent or a literal JSON null.
func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
