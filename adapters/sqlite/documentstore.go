package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/ports"
)

// DocumentStore implements ports.DocumentStore with SQLite. Filters on
// field values use the JSON1 -> operator with the field name bound as a
// parameter inside a path expression.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a SQLite-backed document store.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = "id, schema_id, data, user_id, created_at, updated_at"

// Get retrieves a document by ID.
func (s *DocumentStore) Get(ctx context.Context, id string) (document.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = ?
	`, id)

	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return document.Document{}, ErrNotFound
		}
		return document.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// Find returns documents matching the query, newest update first, plus
// the total match count.
func (s *DocumentStore) Find(ctx context.Context, q ports.DocumentQuery) ([]document.Document, int, error) {
	page, perPage := document.NormalizePage(q.Page, q.PerPage)

	where := "WHERE schema_id = ?"
	args := []any{q.SchemaID}
	for _, f := range q.Filters {
		where += ` AND (data -> ('$."' || ? || '"')) = json(?)`
		args = append(args, f.Field, string(f.Value))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	p := document.Page{TotalItems: total, CurrentPage: page, PerPage: perPage}
	query := "SELECT " + documentColumns + " FROM documents " + where +
		" ORDER BY updated_at DESC, id LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, perPage, p.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("find documents: %w", err)
	}
	defer rows.Close()

	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Search returns documents whose serialized data contains the term.
// schemaID narrows the search when non-empty.
func (s *DocumentStore) Search(ctx context.Context, term, schemaID string, page, perPage int) ([]document.Document, int, error) {
	page, perPage = document.NormalizePage(page, perPage)

	where := "WHERE data LIKE ? ESCAPE '\\'"
	args := []any{"%" + escapeLike(term) + "%"}
	if schemaID != "" {
		where += " AND schema_id = ?"
		args = append(args, schemaID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search: %w", err)
	}

	p := document.Page{TotalItems: total, CurrentPage: page, PerPage: perPage}
	query := "SELECT " + documentColumns + " FROM documents " + where +
		" ORDER BY updated_at DESC, id LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, perPage, p.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Create stores a new document.
func (s *DocumentStore) Create(ctx context.Context, d document.Document) error {
	data, err := d.Data.Encode()
	if err != nil {
		return fmt.Errorf("encode document data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, schema_id, data, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.ID, d.SchemaID, data, d.UserID, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Update overwrites a document's data and editor.
func (s *DocumentStore) Update(ctx context.Context, d document.Document) error {
	data, err := d.Data.Encode()
	if err != nil {
		return fmt.Errorf("encode document data: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET data = ?, user_id = ?, updated_at = ? WHERE id = ?
	`, data, d.UserID, d.UpdatedAt, d.ID)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIDsBySchema returns all document ids of a schema.
func (s *DocumentStore) ListIDsBySchema(ctx context.Context, schemaID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM documents WHERE schema_id = ?", schemaID)
	if err != nil {
		return nil, fmt.Errorf("list document ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanDocument(row rowScanner) (document.Document, error) {
	var d document.Document
	var data string
	if err := row.Scan(&d.ID, &d.SchemaID, &data, &d.UserID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return document.Document{}, err
	}
	var err error
	d.Data, err = document.Decode(data)
	if err != nil {
		return document.Document{}, fmt.Errorf("decode document data: %w", err)
	}
	return d, nil
}

func collectDocuments(rows *sql.Rows) ([]document.Document, error) {
	var docs []document.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Ensure interface compliance.
var _ ports.DocumentStore = (*DocumentStore)(nil)
