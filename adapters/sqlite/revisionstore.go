package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/ports"
)

// RevisionStore implements ports.RevisionStore with SQLite. Both logs
// are append-only; this store never issues UPDATE or DELETE.
type RevisionStore struct {
	db *DB
}

// NewRevisionStore creates a SQLite-backed revision store.
func NewRevisionStore(db *DB) *RevisionStore {
	return &RevisionStore{db: db}
}

// CreateDocumentRevision appends a document snapshot.
func (s *RevisionStore) CreateDocumentRevision(ctx context.Context, r document.Revision) error {
	data, err := r.Data.Encode()
	if err != nil {
		return fmt.Errorf("encode revision data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO document_revisions (id, document_id, schema_id, data, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.DocumentID, r.SchemaID, data, r.UserID, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create document revision: %w", err)
	}
	return nil
}

// ListByDocument returns a document's revisions, newest first.
func (s *RevisionStore) ListByDocument(ctx context.Context, documentID string) ([]document.Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, schema_id, data, user_id, created_at
		FROM document_revisions WHERE document_id = ?
		ORDER BY created_at DESC, id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document revisions: %w", err)
	}
	defer rows.Close()

	var revisions []document.Revision
	for rows.Next() {
		var r document.Revision
		var data string
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.SchemaID, &data, &r.UserID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document revision: %w", err)
		}
		r.Data, err = document.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode revision data: %w", err)
		}
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}

// CreateSchemaRevision appends a schema snapshot.
func (s *RevisionStore) CreateSchemaRevision(ctx context.Context, r document.SchemaRevision) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schema_revisions (id, schema_id, data, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.SchemaID, string(r.Data), r.UserID, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create schema revision: %w", err)
	}
	return nil
}

// ListBySchema returns a schema's revisions, newest first.
func (s *RevisionStore) ListBySchema(ctx context.Context, schemaID string) ([]document.SchemaRevision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, schema_id, data, user_id, created_at
		FROM schema_revisions WHERE schema_id = ?
		ORDER BY created_at DESC, id
	`, schemaID)
	if err != nil {
		return nil, fmt.Errorf("list schema revisions: %w", err)
	}
	defer rows.Close()

	var revisions []document.SchemaRevision
	for rows.Next() {
		var r document.SchemaRevision
		var data string
		if err := rows.Scan(&r.ID, &r.SchemaID, &data, &r.UserID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan schema revision: %w", err)
		}
		r.Data = json.RawMessage(data)
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}

// Ensure interface compliance.
var _ ports.RevisionStore = (*RevisionStore)(nil)
