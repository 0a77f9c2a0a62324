package fields

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stencilcms/stencil/domain/schema"
)

// DateTime is an RFC 3339 timestamp field.
type DateTime struct{}

func (DateTime) Name() string        { return "datetime" }
func (DateTime) Title() string       { return "Date & Time" }
func (DateTime) Description() string { return "A point in time, stored as RFC 3339." }
func (DateTime) DefaultValue() any   { return nil }

func (DateTime) InputShape(schema.Field) Shape { return Shape{Kind: KindDateTime} }
func (DateTime) WhereShape(schema.Field) Shape { return Shape{Kind: KindDateTime} }

func (DateTime) OutputShape(_ schema.Field, _ []schema.Schema, _ map[string]Shape) Shape {
	return Shape{Kind: KindDateTime}
}

func (DateTime) ValidateValue(raw json.RawMessage, _ schema.Settings) error {
	if isNull(raw) {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("expected an RFC 3339 string: %w", err)
	}
	if _, err := time.Parse(time.RFC3339, s); err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return nil
}
