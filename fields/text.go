package fields

import (
	"encoding/json"
	"fmt"

	"github.com/stencilcms/stencil/domain/schema"
)

// Text is a string field, optionally bounded by settings.maxLength.
type Text struct{}

func (Text) Name() string        { return "text" }
func (Text) Title() string       { return "Text" }
func (Text) Description() string { return "A text field for short or long form content." }
func (Text) DefaultValue() any   { return "" }

func (Text) InputShape(schema.Field) Shape { return Shape{Kind: KindString} }
func (Text) WhereShape(schema.Field) Shape { return Shape{Kind: KindString} }

func (Text) OutputShape(_ schema.Field, _ []schema.Schema, _ map[string]Shape) Shape {
	return Shape{Kind: KindString}
}

func (Text) ValidateValue(raw json.RawMessage, settings schema.Settings) error {
	if isNull(raw) {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("expected a string: %w", err)
	}

	if max, ok := settings["maxLength"].(float64); ok && max > 0 && len(s) > int(max) {
		return fmt.Errorf("text exceeds maximum length of %d", int(max))
	}
	return nil
}
