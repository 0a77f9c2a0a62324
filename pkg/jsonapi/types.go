// Package jsonapi renders the API's wire format: JSON:API documents
// carrying schemas, fields, documents, users, and webhooks. Only the
// subset of the format the handlers emit is modeled here.
package jsonapi

// Document is the top-level envelope. Exactly one of Data or Errors is
// populated; Meta and Links ride alongside for pagination.
type Document struct {
	Data   any     `json:"data,omitempty"`
	Errors []Error `json:"errors,omitempty"`
	Meta   Meta    `json:"meta,omitempty"`
	Links  *Links  `json:"links,omitempty"`
}

// Resource is one addressable thing: a schema, a content document, a
// webhook call, and so on.
type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    map[string]any          `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
	Links         *ResourceLinks          `json:"links,omitempty"`
	Meta          Meta                    `json:"meta,omitempty"`
}

// ResourceIdentifier is a bare type/id pair, used as relationship
// linkage (a document pointing at its schema, a user at its roles).
type ResourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Relationship links a resource to one or many others. Data holds a
// ResourceIdentifier or a []ResourceIdentifier.
type Relationship struct {
	Data any `json:"data"`
}

// Links carries the self link and the pagination cursor links.
type Links struct {
	Self  string `json:"self,omitempty"`
	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
}

// ResourceLinks holds the per-resource self link.
type ResourceLinks struct {
	Self string `json:"self,omitempty"`
}

// Error is one error object in the errors array. Status is the HTTP
// status as a string per the format; Code is the stable machine code
// clients switch on (not_found, insufficient_scope, conflict).
type Error struct {
	Status string       `json:"status"`
	Code   string       `json:"code"`
	Title  string       `json:"title"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
	Meta   Meta         `json:"meta,omitempty"`
}

// ErrorSource points at what caused the error: a body field or a query
// parameter.
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// Meta is arbitrary document or resource metadata.
type Meta map[string]any

// ContentType is the JSON:API media type.
const ContentType = "application/vnd.api+json"
