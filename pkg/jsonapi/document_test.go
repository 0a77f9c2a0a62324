package jsonapi

import (
	"encoding/json"
	"testing"
)

func TestDocumentBuilder_Resource(t *testing.T) {
	doc := NewDocument().
		DataResource(NewResource("schema", "S1").Build()).
		Meta("generatedAt", "2026-02-01T10:00:00Z").
		Build()

	r, ok := doc.Data.(Resource)
	if !ok || r.ID != "S1" {
		t.Fatalf("data = %v", doc.Data)
	}
	if doc.Meta["generatedAt"] == nil {
		t.Error("meta lost")
	}
}

func TestDocumentBuilder_NilCollectionSerializesAsArray(t *testing.T) {
	doc := NewDocument().DataCollection(nil).Build()

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	// An empty page is [], not null; clients iterate without nil checks.
	if string(raw) != `{"data":[]}` {
		t.Errorf("wire form = %s", raw)
	}
}

func TestDocumentBuilder_ErrorsDropData(t *testing.T) {
	doc := NewDocument().
		DataResource(NewResource("schema", "S1").Build()).
		Errors(ErrNotFound("schema")).
		Build()

	if doc.Data != nil {
		t.Error("errors and data are mutually exclusive")
	}
	if len(doc.Errors) != 1 {
		t.Errorf("errors = %v", doc.Errors)
	}
}

func TestDocumentBuilder_Pagination(t *testing.T) {
	doc := NewDocument().
		DataCollection([]Resource{NewResource("document", "D1").Build()}).
		Pagination(NewPagination(5, 1, 2, "/content/articles")).
		Build()

	if doc.Meta["pages"] != 3 {
		t.Errorf("pages = %v", doc.Meta["pages"])
	}
	if doc.Links == nil || doc.Links.Next == "" {
		t.Error("page 1 of 3 should carry a next link")
	}

	// nil pagination leaves the envelope untouched
	plain := NewDocument().DataCollection(nil).Pagination(nil).Build()
	if plain.Meta != nil || plain.Links != nil {
		t.Errorf("unpaginated doc gained meta=%v links=%v", plain.Meta, plain.Links)
	}
}
