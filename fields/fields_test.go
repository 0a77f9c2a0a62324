package fields

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stencilcms/stencil/domain/schema"
)

func TestRegistry_Lookup(t *testing.T) {
	r := Builtin()

	typ, err := r.Lookup("number")
	if err != nil {
		t.Fatalf("Lookup(number): %v", err)
	}
	if typ.Name() != "number" {
		t.Errorf("Name = %s", typ.Name())
	}

	_, err = r.Lookup("holograph")
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	names := Builtin().Names()
	want := []string{"boolean", "datetime", "json", "number", "reference", "text"}
	if len(names) != len(want) {
		t.Fatalf("Names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestRegistry_FreezePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(Text{})
	r.Freeze()

	defer func() {
		if recover() == nil {
			t.Error("Register after Freeze should panic")
		}
	}()
	r.Register(Number{})
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(Text{})

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register should panic")
		}
	}()
	r.Register(Text{})
}

func TestNumber_Validate(t *testing.T) {
	whole := schema.Settings{}
	float := schema.Settings{"float": true}

	tests := []struct {
		name     string
		raw      string
		settings schema.Settings
		wantErr  bool
	}{
		{"whole ok", `42`, whole, false},
		{"zero ok", `0`, whole, false},
		{"decimal rejected for whole", `1.5`, whole, true},
		{"decimal ok for float", `1.5`, float, false},
		{"string rejected", `"42"`, whole, true},
		{"null accepted", `null`, whole, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Number{}.ValidateValue(json.RawMessage(tt.raw), tt.settings)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateValue(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}

func TestNumber_Shape(t *testing.T) {
	f := schema.Field{Settings: schema.Settings{"float": true}}
	if got := (Number{}).InputShape(f); got.Kind != KindFloat {
		t.Errorf("float field shape = %v", got)
	}

	f = schema.Field{Settings: schema.Settings{}}
	if got := (Number{}).InputShape(f); got.Kind != KindInt {
		t.Errorf("whole field shape = %v", got)
	}
}

func TestText_Validate(t *testing.T) {
	if err := (Text{}).ValidateValue(json.RawMessage(`"hello"`), nil); err != nil {
		t.Errorf("valid text rejected: %v", err)
	}
	if err := (Text{}).ValidateValue(json.RawMessage(`42`), nil); err == nil {
		t.Error("number accepted as text")
	}

	settings := schema.Settings{"maxLength": float64(3)}
	if err := (Text{}).ValidateValue(json.RawMessage(`"toolong"`), settings); err == nil {
		t.Error("over-length text accepted")
	}
	if err := (Text{}).ValidateValue(json.RawMessage(`"ok"`), settings); err != nil {
		t.Errorf("short text rejected: %v", err)
	}
}

func TestBoolean_Validate(t *testing.T) {
	if err := (Boolean{}).ValidateValue(json.RawMessage(`true`), nil); err != nil {
		t.Errorf("bool rejected: %v", err)
	}
	if err := (Boolean{}).ValidateValue(json.RawMessage(`"true"`), nil); err == nil {
		t.Error("string accepted as bool")
	}
}

func TestDateTime_Validate(t *testing.T) {
	if err := (DateTime{}).ValidateValue(json.RawMessage(`"2024-06-01T12:00:00Z"`), nil); err != nil {
		t.Errorf("timestamp rejected: %v", err)
	}
	if err := (DateTime{}).ValidateValue(json.RawMessage(`"June 1st"`), nil); err == nil {
		t.Error("freeform date accepted")
	}
}

func TestReference_OutputShape(t *testing.T) {
	all := []schema.Schema{{ID: "S1", Name: "author"}}
	cache := make(map[string]Shape)

	f := schema.Field{Settings: schema.Settings{"schema": "author"}}
	shape := Reference{}.OutputShape(f, all, cache)
	if shape.Kind != KindReference || shape.Ref != "author" {
		t.Errorf("shape = %v", shape)
	}

	// Second resolution comes from the cache.
	if got := (Reference{}).OutputShape(f, nil, cache); got.Ref != "author" {
		t.Errorf("cached shape = %v", got)
	}

	// Unresolvable target degrades to a string id.
	missing := schema.Field{Settings: schema.Settings{"schema": "ghost"}}
	if got := (Reference{}).OutputShape(missing, all, cache); got.Kind != KindString {
		t.Errorf("unresolvable shape = %v", got)
	}
}

func TestReference_Hooks(t *testing.T) {
	f := schema.Field{Name: "author", Settings: schema.Settings{}}
	if err := (Reference{}).OnFieldCreate(f); err == nil {
		t.Error("reference without target should fail OnFieldCreate")
	}

	f.Settings["schema"] = "author"
	if err := (Reference{}).OnFieldCreate(f); err != nil {
		t.Errorf("OnFieldCreate: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	r := Builtin()

	tests := []struct {
		typeName string
		want     any
	}{
		{"text", ""},
		{"number", float64(0)},
		{"boolean", false},
		{"datetime", nil},
		{"json", nil},
		{"reference", nil},
	}

	for _, tt := range tests {
		typ, err := r.Lookup(tt.typeName)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", tt.typeName, err)
		}
		if got := typ.DefaultValue(); got != tt.want {
			t.Errorf("%s default = %v, want %v", tt.typeName, got, tt.want)
		}
	}
}

func TestRegistry_DocumentShapes(t *testing.T) {
	r := Builtin()
	all := []schema.Schema{
		{ID: "S1", Name: "author"},
		{ID: "S2", Name: "post"},
	}
	sc := schema.Schema{
		ID:   "S2",
		Name: "post",
		Fields: []schema.Field{
			{Name: "title", Type: "text"},
			{Name: "views", Type: "number"},
			{Name: "author", Type: "reference", Settings: schema.Settings{"schema": "author"}},
		},
	}

	ds, err := r.DocumentShapes(sc, all)
	if err != nil {
		t.Fatalf("DocumentShapes: %v", err)
	}
	if got := ds.Input["title"].Kind; got != KindString {
		t.Errorf("input title = %v", got)
	}
	if got := ds.Where["views"].Kind; got != KindInt {
		t.Errorf("where views = %v", got)
	}
	if got := ds.Output["author"]; got.Kind != KindReference || got.Ref != "author" {
		t.Errorf("output author = %v", got)
	}
	// The input side of a reference stays a plain id string.
	if got := ds.Input["author"].Kind; got != KindString {
		t.Errorf("input author = %v", got)
	}

	bad := schema.Schema{Fields: []schema.Field{{Name: "x", Type: "holograph"}}}
	if _, err := r.DocumentShapes(bad, nil); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}
