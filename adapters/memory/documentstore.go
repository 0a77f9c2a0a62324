package memory

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/ports"
)

// DocumentStore is an in-memory implementation of ports.DocumentStore.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]document.Document // by ID
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]document.Document)}
}

// Get retrieves a document by ID.
func (s *DocumentStore) Get(ctx context.Context, id string) (document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[id]
	if !ok {
		return document.Document{}, ports.ErrNotFound
	}
	d.Data = d.Data.Clone()
	return d, nil
}

// Find returns documents matching the query, newest update first.
func (s *DocumentStore) Find(ctx context.Context, q ports.DocumentQuery) ([]document.Document, int, error) {
	page, perPage := document.NormalizePage(q.Page, q.PerPage)

	s.mu.RLock()
	var matched []document.Document
	for _, d := range s.docs {
		if d.SchemaID != q.SchemaID {
			continue
		}
		if !matchesFilters(d, q.Filters) {
			continue
		}
		d.Data = d.Data.Clone()
		matched = append(matched, d)
	}
	s.mu.RUnlock()

	sortNewestFirst(matched)
	total := len(matched)
	p := document.Page{TotalItems: total, CurrentPage: page, PerPage: perPage}
	return paginate(matched, p.Offset(), perPage), total, nil
}

// Search returns documents whose serialized data contains the term.
func (s *DocumentStore) Search(ctx context.Context, term, schemaID string, page, perPage int) ([]document.Document, int, error) {
	page, perPage = document.NormalizePage(page, perPage)

	s.mu.RLock()
	var matched []document.Document
	for _, d := range s.docs {
		if schemaID != "" && d.SchemaID != schemaID {
			continue
		}
		encoded, err := d.Data.Encode()
		if err != nil {
			s.mu.RUnlock()
			return nil, 0, err
		}
		if !strings.Contains(encoded, term) {
			continue
		}
		d.Data = d.Data.Clone()
		matched = append(matched, d)
	}
	s.mu.RUnlock()

	sortNewestFirst(matched)
	total := len(matched)
	p := document.Page{TotalItems: total, CurrentPage: page, PerPage: perPage}
	return paginate(matched, p.Offset(), perPage), total, nil
}

// Create stores a new document.
func (s *DocumentStore) Create(ctx context.Context, d document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[d.ID]; ok {
		return ports.ErrDuplicate
	}
	d.Data = d.Data.Clone()
	s.docs[d.ID] = d
	return nil
}

// Update overwrites a document's data and editor.
func (s *DocumentStore) Update(ctx context.Context, d document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[d.ID]
	if !ok {
		return ports.ErrNotFound
	}
	existing.Data = d.Data.Clone()
	existing.UserID = d.UserID
	existing.UpdatedAt = d.UpdatedAt
	s.docs[d.ID] = existing
	return nil
}

// Delete removes a document.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

// ListIDsBySchema returns all document ids of a schema.
func (s *DocumentStore) ListIDsBySchema(ctx context.Context, schemaID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, d := range s.docs {
		if d.SchemaID == schemaID {
			ids = append(ids, d.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *DocumentStore) snapshot() map[string]document.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]document.Document, len(s.docs))
	for k, v := range s.docs {
		v.Data = v.Data.Clone()
		out[k] = v
	}
	return out
}

func (s *DocumentStore) restore(snap map[string]document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = snap
}

func (s *DocumentStore) rewrite(schemaID string, fn func(data document.Data) document.Data) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, d := range s.docs {
		if d.SchemaID != schemaID {
			continue
		}
		d.Data = fn(d.Data.Clone())
		s.docs[id] = d
	}
}

func matchesFilters(d document.Document, filters []ports.DocumentFilter) bool {
	for _, f := range filters {
		v, ok := d.Data[f.Field]
		if !ok || !jsonEqual(v, f.Value) {
			return false
		}
	}
	return true
}

func jsonEqual(a, b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
}

func sortNewestFirst(docs []document.Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UpdatedAt.Equal(docs[j].UpdatedAt) {
			return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}

// Ensure interface compliance.
var _ ports.DocumentStore = (*DocumentStore)(nil)
