package fields

import (
	"encoding/json"
	"fmt"

	"github.com/stencilcms/stencil/domain/schema"
)

// Reference points at a document of another schema. The target schema
// name lives in settings.schema; the stored value is the referenced
// document's id.
type Reference struct{}

// Hooks: a reference field with no target is a configuration error, so
// it is rejected when the field is created or retargeted.
var _ Hooks = Reference{}

func (Reference) Name() string        { return "reference" }
func (Reference) Title() string       { return "Reference" }
func (Reference) Description() string { return "A link to a document of another schema." }
func (Reference) DefaultValue() any   { return nil }

func (Reference) InputShape(schema.Field) Shape { return Shape{Kind: KindString} }
func (Reference) WhereShape(schema.Field) Shape { return Shape{Kind: KindString} }

// OutputShape resolves the target schema so the dynamic API can expose
// the reference as its target type. Unresolvable targets degrade to a
// plain string id. The cache bounds resolution to one pass per rebuild.
func (Reference) OutputShape(f schema.Field, all []schema.Schema, cache map[string]Shape) Shape {
	target, _ := f.Settings["schema"].(string)
	if target == "" {
		return Shape{Kind: KindString}
	}

	if cache != nil {
		if shape, ok := cache[target]; ok {
			return shape
		}
	}

	for _, s := range all {
		if s.Name == target {
			shape := Shape{Kind: KindReference, Ref: s.Name}
			if cache != nil {
				cache[target] = shape
			}
			return shape
		}
	}
	return Shape{Kind: KindString}
}

func (Reference) ValidateValue(raw json.RawMessage, _ schema.Settings) error {
	if isNull(raw) {
		return nil
	}

	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return fmt.Errorf("expected a document id string: %w", err)
	}
	if id == "" {
		return fmt.Errorf("reference id must not be empty")
	}
	return nil
}

// OnFieldCreate rejects reference fields without a target schema.
func (r Reference) OnFieldCreate(f schema.Field) error {
	return r.requireTarget(f)
}

// OnFieldUpdate re-checks the target after settings changes.
func (r Reference) OnFieldUpdate(f schema.Field) error {
	return r.requireTarget(f)
}

func (Reference) requireTarget(f schema.Field) error {
	if target, _ := f.Settings["schema"].(string); target == "" {
		return fmt.Errorf("reference field %q requires settings.schema", f.Name)
	}
	return nil
}
