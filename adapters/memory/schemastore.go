// Package memory provides in-memory implementations of the storage
// ports for testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/schema"
	"github.com/stencilcms/stencil/ports"
)

// SchemaStore is an in-memory implementation of ports.SchemaStore.
type SchemaStore struct {
	mu      sync.RWMutex
	schemas map[string]schema.Schema // by ID
	fields  *FieldStore
}

// NewSchemaStore creates a new in-memory schema store. Fields are
// resolved through the given field store on load.
func NewSchemaStore(fields *FieldStore) *SchemaStore {
	return &SchemaStore{
		schemas: make(map[string]schema.Schema),
		fields:  fields,
	}
}

// Get retrieves a schema by ID with its active fields.
func (s *SchemaStore) Get(ctx context.Context, id string) (schema.Schema, error) {
	s.mu.RLock()
	sc, ok := s.schemas[id]
	s.mu.RUnlock()
	if !ok {
		return schema.Schema{}, ports.ErrNotFound
	}
	return s.withFields(ctx, sc)
}

// GetByName retrieves a schema by its unique name.
func (s *SchemaStore) GetByName(ctx context.Context, name string) (schema.Schema, error) {
	s.mu.RLock()
	var found schema.Schema
	ok := false
	for _, sc := range s.schemas {
		if sc.Name == name {
			found, ok = sc, true
			break
		}
	}
	s.mu.RUnlock()
	if !ok {
		return schema.Schema{}, ports.ErrNotFound
	}
	return s.withFields(ctx, found)
}

// List returns schemas ordered by name, plus a total count.
func (s *SchemaStore) List(ctx context.Context, page, perPage int) ([]schema.Schema, int, error) {
	page, perPage = document.NormalizePage(page, perPage)

	s.mu.RLock()
	all := make([]schema.Schema, 0, len(s.schemas))
	for _, sc := range s.schemas {
		all = append(all, sc)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)

	p := document.Page{TotalItems: total, CurrentPage: page, PerPage: perPage}
	all = paginate(all, p.Offset(), perPage)
	for i := range all {
		var err error
		all[i], err = s.withFields(ctx, all[i])
		if err != nil {
			return nil, 0, err
		}
	}
	return all, total, nil
}

// Create stores a new schema.
func (s *SchemaStore) Create(ctx context.Context, sc schema.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[sc.ID]; ok {
		return ports.ErrDuplicate
	}
	for _, existing := range s.schemas {
		if existing.Name == sc.Name {
			return ports.ErrDuplicate
		}
	}
	sc.Fields = nil
	s.schemas[sc.ID] = sc
	return nil
}

// Update modifies a schema's own attributes.
func (s *SchemaStore) Update(ctx context.Context, sc schema.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[sc.ID]; !ok {
		return ports.ErrNotFound
	}
	for id, existing := range s.schemas {
		if id != sc.ID && existing.Name == sc.Name {
			return ports.ErrDuplicate
		}
	}
	sc.Fields = nil
	s.schemas[sc.ID] = sc
	return nil
}

// Delete removes a schema.
func (s *SchemaStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.schemas, id)
	return nil
}

func (s *SchemaStore) withFields(ctx context.Context, sc schema.Schema) (schema.Schema, error) {
	fields, err := s.fields.FindActive(ctx, sc.ID)
	if err != nil {
		return schema.Schema{}, err
	}
	sc.Fields = fields
	return sc, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// FieldStore is an in-memory implementation of ports.FieldStore. Writes
// go through the memory FieldLifecycle.
type FieldStore struct {
	mu     sync.RWMutex
	fields map[string]schema.Field // by ID
}

// NewFieldStore creates a new in-memory field store.
func NewFieldStore() *FieldStore {
	return &FieldStore{fields: make(map[string]schema.Field)}
}

// Get retrieves an active field by ID.
func (s *FieldStore) Get(ctx context.Context, id string) (schema.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.fields[id]
	if !ok || f.IsDeleted() {
		return schema.Field{}, ports.ErrNotFound
	}
	return f, nil
}

// FindActive returns the non-deleted fields of a schema in creation order.
func (s *FieldStore) FindActive(ctx context.Context, schemaID string) ([]schema.Field, error) {
	return s.find(schemaID, true), nil
}

// FindIncludingDeleted returns all fields of a schema.
func (s *FieldStore) FindIncludingDeleted(ctx context.Context, schemaID string) ([]schema.Field, error) {
	return s.find(schemaID, false), nil
}

func (s *FieldStore) find(schemaID string, activeOnly bool) []schema.Field {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []schema.Field
	for _, f := range s.fields {
		if f.SchemaID != schemaID {
			continue
		}
		if activeOnly && f.IsDeleted() {
			continue
		}
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (s *FieldStore) put(f schema.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[f.ID] = f
}

func (s *FieldStore) softDelete(id string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fields[id]
	if !ok || f.IsDeleted() {
		return false
	}
	f.DeletedAt = &at
	s.fields[id] = f
	return true
}

func (s *FieldStore) snapshot() map[string]schema.Field {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]schema.Field, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

func (s *FieldStore) restore(snap map[string]schema.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = snap
}

// Ensure interface compliance.
var (
	_ ports.SchemaStore = (*SchemaStore)(nil)
	_ ports.FieldStore  = (*FieldStore)(nil)
)
