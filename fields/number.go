package fields

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/stencilcms/stencil/domain/schema"
)

// Number is a numeric field, whole by default; settings.float allows
// decimals.
type Number struct{}

func (Number) Name() string  { return "number" }
func (Number) Title() string { return "Number" }
func (Number) Description() string {
	return "A number field, allowing for either whole or decimal numbers."
}
func (Number) DefaultValue() any { return float64(0) }

func (Number) InputShape(f schema.Field) Shape { return numberShape(f.Settings) }
func (Number) WhereShape(f schema.Field) Shape { return numberShape(f.Settings) }

func (Number) OutputShape(f schema.Field, _ []schema.Schema, _ map[string]Shape) Shape {
	return numberShape(f.Settings)
}

func numberShape(settings schema.Settings) Shape {
	if isFloat, _ := settings["float"].(bool); isFloat {
		return Shape{Kind: KindFloat}
	}
	return Shape{Kind: KindInt}
}

func (Number) ValidateValue(raw json.RawMessage, settings schema.Settings) error {
	if isNull(raw) {
		return nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("expected a number: %w", err)
	}

	if isFloat, _ := settings["float"].(bool); !isFloat && n != math.Trunc(n) {
		return fmt.Errorf("expected a whole number, got %v", n)
	}
	return nil
}
