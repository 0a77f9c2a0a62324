// Package document provides value types and pure functions for content
// documents and their revisions. Document payloads are kept as raw JSON
// per key so values round-trip byte-identically through storage.
package document

import (
	"encoding/json"
	"sort"
	"time"
)

// Data maps field names to raw JSON values.
type Data map[string]json.RawMessage

// Document represents a schema-conformant content record (value type).
type Document struct {
	ID        string
	SchemaID  string
	Data      Data
	UserID    string // creator / last editor
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Revision is an immutable snapshot of a document's prior state.
// Revisions are append-only; they are never updated or deleted by
// normal flow.
type Revision struct {
	ID         string
	DocumentID string
	SchemaID   string
	Data       Data
	UserID     string
	CreatedAt  time.Time
}

// SchemaRevision is an immutable snapshot of a schema definition's
// prior state, captured before every structural change.
type SchemaRevision struct {
	ID        string
	SchemaID  string
	Data      json.RawMessage // serialized schema + field definitions
	UserID    string
	CreatedAt time.Time
}

// Keys returns the field names present in d, sorted for determinism.
func (d Data) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of d.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		cp := make(json.RawMessage, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// UnknownKeys returns the keys of d that are not in the allowed set.
// Used to reject document payloads referencing undefined fields.
func (d Data) UnknownKeys(allowed map[string]bool) []string {
	var unknown []string
	for _, k := range d.Keys() {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	return unknown
}

// Encode serializes data to JSON for storage. A nil map encodes as {}.
func (d Data) Encode() (string, error) {
	if d == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Decode parses data JSON from storage.
func Decode(raw string) (Data, error) {
	if raw == "" {
		return Data{}, nil
	}
	var d Data
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, err
	}
	return d, nil
}

// Page describes one page of results.
type Page struct {
	TotalItems  int
	CurrentPage int
	PerPage     int
}

// TotalPages returns the number of pages: ceil(totalItems / perPage).
func (p Page) TotalPages() int {
	if p.PerPage <= 0 {
		return 0
	}
	return (p.TotalItems + p.PerPage - 1) / p.PerPage
}

// HasNextPage reports whether a page follows the current one.
func (p Page) HasNextPage() bool {
	return p.CurrentPage < p.TotalPages()
}

// Offset returns the row offset for the current page.
func (p Page) Offset() int {
	if p.CurrentPage < 1 {
		return 0
	}
	return (p.CurrentPage - 1) * p.PerPage
}

// NormalizePage clamps page/perPage to sane values (1-based page,
// default 20 per page, capped at 100).
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}
