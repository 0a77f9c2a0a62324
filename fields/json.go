package fields

import (
	"encoding/json"
	"fmt"

	"github.com/stencilcms/stencil/domain/schema"
)

// JSON is a free-form JSON field; any valid JSON value is accepted.
type JSON struct{}

func (JSON) Name() string        { return "json" }
func (JSON) Title() string       { return "JSON" }
func (JSON) Description() string { return "An arbitrary JSON value." }
func (JSON) DefaultValue() any   { return nil }

func (JSON) InputShape(schema.Field) Shape { return Shape{Kind: KindJSON} }
func (JSON) WhereShape(schema.Field) Shape { return Shape{Kind: KindJSON} }

func (JSON) OutputShape(_ schema.Field, _ []schema.Schema, _ map[string]Shape) Shape {
	return Shape{Kind: KindJSON}
}

func (JSON) ValidateValue(raw json.RawMessage, _ schema.Settings) error {
	if isNull(raw) {
		return nil
	}
	if !json.Valid(raw) {
		return fmt.Errorf("invalid JSON value")
	}
	return nil
}
