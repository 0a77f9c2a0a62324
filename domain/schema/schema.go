// Package schema provides value types and pure functions for content schemas.
// A Schema is a named collection of typed Fields that documents must satisfy.
// All types are immutable values; all functions are pure.
package schema

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Settings is an opaque key/value bag interpreted by consumers
// (field types read their own settings out of it).
type Settings map[string]any

// Schema represents a user-defined content type (value type).
type Schema struct {
	ID        string
	Name      string // unique, URL-safe
	Title     string
	Settings  Settings
	Fields    []Field // ordered; populated by the store on load
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Field represents a typed, named attribute of a Schema (value type).
type Field struct {
	ID          string
	SchemaID    string
	Name        string // unique within the schema
	Title       string
	Description string
	Type        string // discriminator into the field type registry
	Settings    Settings
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time // nil = active
}

// IsDeleted returns true if the field has been soft-deleted.
func (f Field) IsDeleted() bool {
	return f.DeletedAt != nil
}

// DefaultValue returns the field's configured default from settings,
// or (nil, false) when no explicit default is set.
func (f Field) DefaultValue() (any, bool) {
	v, ok := f.Settings["default"]
	return v, ok
}

// FieldUpdate describes a partial update to a field.
// Nil pointers mean "leave unchanged".
type FieldUpdate struct {
	Name        *string
	Title       *string
	Description *string
	Type        *string
	Settings    *Settings
}

// Apply returns a copy of f with the non-nil attributes of u applied.
func (u FieldUpdate) Apply(f Field) Field {
	if u.Name != nil {
		f.Name = *u.Name
	}
	if u.Title != nil {
		f.Title = *u.Title
	}
	if u.Description != nil {
		f.Description = *u.Description
	}
	if u.Type != nil {
		f.Type = *u.Type
	}
	if u.Settings != nil {
		f.Settings = *u.Settings
	}
	return f
}

var (
	schemaNameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	fieldNameRegex  = regexp.MustCompile(`^[a-z][a-zA-Z0-9_]*$`)
)

// ValidateName validates a schema name (URL-safe, lowercase).
func ValidateName(name string) (bool, string) {
	if name == "" {
		return false, "Name is required"
	}
	if len(name) > 64 {
		return false, "Name must be 64 characters or less"
	}
	if !schemaNameRegex.MatchString(name) {
		return false, "Name must be lowercase alphanumeric with hyphens, starting with a letter"
	}
	return true, ""
}

// ValidateFieldName validates a field name. Field names are embedded in
// JSON paths by the storage layer, so the character set is restricted.
func ValidateFieldName(name string) (bool, string) {
	if name == "" {
		return false, "Field name is required"
	}
	if len(name) > 64 {
		return false, "Field name must be 64 characters or less"
	}
	if !fieldNameRegex.MatchString(name) {
		return false, "Field name must be alphanumeric with underscores, starting with a lowercase letter"
	}
	return true, ""
}

// ActiveFields returns the fields of s that have not been soft-deleted,
// preserving order.
func ActiveFields(fields []Field) []Field {
	var active []Field
	for _, f := range fields {
		if !f.IsDeleted() {
			active = append(active, f)
		}
	}
	return active
}

// FieldByName returns the active field with the given name, if any.
func FieldByName(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if !f.IsDeleted() && f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasFieldNamed reports whether an active field with the given name exists.
func HasFieldNamed(fields []Field, name string) bool {
	_, ok := FieldByName(fields, name)
	return ok
}

// Slugify converts a title into a URL-safe schema name candidate.
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphens
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// EncodeSettings serializes settings to JSON for storage.
func EncodeSettings(s Settings) (string, error) {
	if s == nil {
		s = Settings{}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeSettings parses settings JSON from storage.
func DecodeSettings(raw string) (Settings, error) {
	if raw == "" {
		return Settings{}, nil
	}
	var s Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, err
	}
	return s, nil
}
