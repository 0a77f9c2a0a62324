package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/ports"
)

// RevisionStore is an in-memory implementation of ports.RevisionStore.
type RevisionStore struct {
	mu        sync.RWMutex
	documents map[string]document.Revision       // by ID
	schemas   map[string]document.SchemaRevision // by ID
}

// NewRevisionStore creates a new in-memory revision store.
func NewRevisionStore() *RevisionStore {
	return &RevisionStore{
		documents: make(map[string]document.Revision),
		schemas:   make(map[string]document.SchemaRevision),
	}
}

// CreateDocumentRevision appends a document snapshot.
func (s *RevisionStore) CreateDocumentRevision(ctx context.Context, r document.Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Data = r.Data.Clone()
	s.documents[r.ID] = r
	return nil
}

// ListByDocument returns a document's revisions, newest first.
func (s *RevisionStore) ListByDocument(ctx context.Context, documentID string) ([]document.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []document.Revision
	for _, r := range s.documents {
		if r.DocumentID == documentID {
			r.Data = r.Data.Clone()
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// CreateSchemaRevision appends a schema snapshot.
func (s *RevisionStore) CreateSchemaRevision(ctx context.Context, r document.SchemaRevision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[r.ID] = r
	return nil
}

// ListBySchema returns a schema's revisions, newest first.
func (s *RevisionStore) ListBySchema(ctx context.Context, schemaID string) ([]document.SchemaRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []document.SchemaRevision
	for _, r := range s.schemas {
		if r.SchemaID == schemaID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *RevisionStore) snapshot() (map[string]document.Revision, map[string]document.SchemaRevision) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make(map[string]document.Revision, len(s.documents))
	for k, v := range s.documents {
		docs[k] = v
	}
	schemas := make(map[string]document.SchemaRevision, len(s.schemas))
	for k, v := range s.schemas {
		schemas[k] = v
	}
	return docs, schemas
}

func (s *RevisionStore) restore(docs map[string]document.Revision, schemas map[string]document.SchemaRevision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = docs
	s.schemas = schemas
}

// Ensure interface compliance.
var _ ports.RevisionStore = (*RevisionStore)(nil)
