package fields

import (
	"encoding/json"
	"fmt"

	"github.com/stencilcms/stencil/domain/schema"
)

// Boolean is a true/false field.
type Boolean struct{}

func (Boolean) Name() string        { return "boolean" }
func (Boolean) Title() string       { return "Boolean" }
func (Boolean) Description() string { return "A true or false toggle." }
func (Boolean) DefaultValue() any   { return false }

func (Boolean) InputShape(schema.Field) Shape { return Shape{Kind: KindBool} }
func (Boolean) WhereShape(schema.Field) Shape { return Shape{Kind: KindBool} }

func (Boolean) OutputShape(_ schema.Field, _ []schema.Schema, _ map[string]Shape) Shape {
	return Shape{Kind: KindBool}
}

func (Boolean) ValidateValue(raw json.RawMessage, _ schema.Settings) error {
	if isNull(raw) {
		return nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return fmt.Errorf("expected a boolean: %w", err)
	}
	return nil
}
