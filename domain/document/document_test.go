package document

import (
	"encoding/json"
	"testing"
)

func TestData_UnknownKeys(t *testing.T) {
	d := Data{
		"title": json.RawMessage(`"Hello"`),
		"views": json.RawMessage(`0`),
		"bogus": json.RawMessage(`true`),
	}

	allowed := map[string]bool{"title": true, "views": true}
	unknown := d.UnknownKeys(allowed)

	if len(unknown) != 1 || unknown[0] != "bogus" {
		t.Errorf("UnknownKeys = %v, want [bogus]", unknown)
	}

	d2 := Data{"title": json.RawMessage(`"x"`)}
	if got := d2.UnknownKeys(allowed); got != nil {
		t.Errorf("UnknownKeys = %v, want nil", got)
	}
}

func TestData_RoundTrip(t *testing.T) {
	d := Data{
		"title":  json.RawMessage(`"Hello"`),
		"views":  json.RawMessage(`0`),
		"tags":   json.RawMessage(`["a","b"]`),
		"nested": json.RawMessage(`{"k":1.5}`),
	}

	raw, err := d.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	back, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	for k, v := range d {
		if string(back[k]) != string(v) {
			t.Errorf("key %s: %s != %s", k, back[k], v)
		}
	}
}

func TestData_Clone(t *testing.T) {
	d := Data{"title": json.RawMessage(`"Hello"`)}
	cp := d.Clone()

	cp["title"][1] = 'X'
	if string(d["title"]) != `"Hello"` {
		t.Error("Clone shares backing array with original")
	}

	if Data(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestPage(t *testing.T) {
	// 45 documents, perPage=20: 3 pages, page 3 holds 5, no next page.
	p := Page{TotalItems: 45, CurrentPage: 3, PerPage: 20}

	if got := p.TotalPages(); got != 3 {
		t.Errorf("TotalPages = %d, want 3", got)
	}
	if p.HasNextPage() {
		t.Error("page 3 of 3 should not have a next page")
	}
	if got := p.Offset(); got != 40 {
		t.Errorf("Offset = %d, want 40", got)
	}

	p.CurrentPage = 2
	if !p.HasNextPage() {
		t.Error("page 2 of 3 should have a next page")
	}

	empty := Page{TotalItems: 0, CurrentPage: 1, PerPage: 20}
	if empty.TotalPages() != 0 || empty.HasNextPage() {
		t.Error("empty result set should have zero pages")
	}
}

func TestNormalizePage(t *testing.T) {
	page, perPage := NormalizePage(0, 0)
	if page != 1 || perPage != 20 {
		t.Errorf("NormalizePage(0,0) = %d,%d", page, perPage)
	}

	page, perPage = NormalizePage(3, 500)
	if page != 3 || perPage != 100 {
		t.Errorf("NormalizePage(3,500) = %d,%d", page, perPage)
	}
}
