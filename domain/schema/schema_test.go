package schema

import (
	"testing"
	"time"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "blog", true},
		{"with hyphen", "blog-posts", true},
		{"with digits", "blog2", true},
		{"empty", "", false},
		{"uppercase", "Blog", false},
		{"leading digit", "2blog", false},
		{"underscore", "blog_posts", false},
		{"spaces", "blog posts", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, msg := ValidateName(tt.input)
			if valid != tt.valid {
				t.Errorf("ValidateName(%q) = %v (%s), want %v", tt.input, valid, msg, tt.valid)
			}
		})
	}
}

func TestValidateFieldName(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"title", true},
		{"viewCount", true},
		{"view_count", true},
		{"f2", true},
		{"", false},
		{"Title", false},
		{"2views", false},
		{"view-count", false},
		{`bad"name`, false},
		{"bad.name", false},
	}

	for _, tt := range tests {
		valid, _ := ValidateFieldName(tt.input)
		if valid != tt.valid {
			t.Errorf("ValidateFieldName(%q) = %v, want %v", tt.input, valid, tt.valid)
		}
	}
}

func TestFieldUpdate_Apply(t *testing.T) {
	f := Field{
		Name:        "views",
		Title:       "Views",
		Description: "view counter",
		Type:        "number",
		Settings:    Settings{"float": false},
	}

	newName := "viewCount"
	newTitle := "View Count"
	updated := FieldUpdate{Name: &newName, Title: &newTitle}.Apply(f)

	if updated.Name != "viewCount" {
		t.Errorf("Name = %s, want viewCount", updated.Name)
	}
	if updated.Title != "View Count" {
		t.Errorf("Title = %s, want View Count", updated.Title)
	}
	// Untouched attributes survive
	if updated.Description != "view counter" {
		t.Errorf("Description changed unexpectedly: %s", updated.Description)
	}
	if updated.Type != "number" {
		t.Errorf("Type changed unexpectedly: %s", updated.Type)
	}
}

func TestActiveFields(t *testing.T) {
	now := time.Now()
	fields := []Field{
		{Name: "title"},
		{Name: "body", DeletedAt: &now},
		{Name: "views"},
	}

	active := ActiveFields(fields)
	if len(active) != 2 {
		t.Fatalf("expected 2 active fields, got %d", len(active))
	}
	if active[0].Name != "title" || active[1].Name != "views" {
		t.Errorf("active fields out of order: %v", active)
	}
}

func TestFieldByName(t *testing.T) {
	now := time.Now()
	fields := []Field{
		{Name: "title", Type: "text"},
		{Name: "views", Type: "number", DeletedAt: &now},
	}

	f, ok := FieldByName(fields, "title")
	if !ok || f.Type != "text" {
		t.Errorf("FieldByName(title) = %v, %v", f, ok)
	}

	// Soft-deleted fields are invisible
	if _, ok := FieldByName(fields, "views"); ok {
		t.Error("FieldByName found soft-deleted field")
	}

	if _, ok := FieldByName(fields, "missing"); ok {
		t.Error("FieldByName found nonexistent field")
	}
}

func TestDefaultValue(t *testing.T) {
	f := Field{Settings: Settings{"default": float64(0)}}
	v, ok := f.DefaultValue()
	if !ok || v != float64(0) {
		t.Errorf("DefaultValue = %v, %v", v, ok)
	}

	f = Field{Settings: Settings{}}
	if _, ok := f.DefaultValue(); ok {
		t.Error("expected no default")
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"Blog Posts", "blog-posts"},
		{"  Hello,  World!  ", "hello-world"},
		{"already-a-slug", "already-a-slug"},
		{"42 Things", "42-things"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.out {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.out)
		}
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := Settings{"default": float64(0), "float": true}
	raw, err := EncodeSettings(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeSettings(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["float"] != true {
		t.Errorf("float = %v", decoded["float"])
	}
	if decoded["default"] != float64(0) {
		t.Errorf("default = %v", decoded["default"])
	}

	// Empty input decodes to an empty, usable bag.
	empty, err := DecodeSettings("")
	if err != nil || empty == nil {
		t.Errorf("DecodeSettings(\"\") = %v, %v", empty, err)
	}
}
