package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/schema"
	"github.com/stencilcms/stencil/ports"
)

// SchemaStore implements ports.SchemaStore with SQLite.
type SchemaStore struct {
	db     *DB
	fields *FieldStore
}

// NewSchemaStore creates a SQLite-backed schema store.
func NewSchemaStore(db *DB) *SchemaStore {
	return &SchemaStore{db: db, fields: NewFieldStore(db)}
}

// Get retrieves a schema by ID, including its active fields.
func (s *SchemaStore) Get(ctx context.Context, id string) (schema.Schema, error) {
	return s.getBy(ctx, "id", id)
}

// GetByName retrieves a schema by its unique name.
func (s *SchemaStore) GetByName(ctx context.Context, name string) (schema.Schema, error) {
	return s.getBy(ctx, "name", name)
}

func (s *SchemaStore) getBy(ctx context.Context, column, value string) (schema.Schema, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, title, settings, created_at, updated_at
		FROM schemas WHERE `+column+` = ?
	`, value)

	sc, err := scanSchema(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schema.Schema{}, ErrNotFound
		}
		return schema.Schema{}, fmt.Errorf("get schema: %w", err)
	}

	sc.Fields, err = s.fields.FindActive(ctx, sc.ID)
	if err != nil {
		return schema.Schema{}, err
	}
	return sc, nil
}

// List returns schemas ordered by name, with active fields and a total count.
func (s *SchemaStore) List(ctx context.Context, page, perPage int) ([]schema.Schema, int, error) {
	page, perPage = document.NormalizePage(page, perPage)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schemas").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count schemas: %w", err)
	}

	p := document.Page{TotalItems: total, CurrentPage: page, PerPage: perPage}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, title, settings, created_at, updated_at
		FROM schemas ORDER BY name LIMIT ? OFFSET ?
	`, perPage, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var schemas []schema.Schema
	for rows.Next() {
		sc, err := scanSchema(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan schema: %w", err)
		}
		schemas = append(schemas, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range schemas {
		schemas[i].Fields, err = s.fields.FindActive(ctx, schemas[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return schemas, total, nil
}

// Create stores a new schema.
func (s *SchemaStore) Create(ctx context.Context, sc schema.Schema) error {
	settings, err := schema.EncodeSettings(sc.Settings)
	if err != nil {
		return fmt.Errorf("encode schema settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schemas (id, name, title, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sc.ID, sc.Name, sc.Title, settings, sc.CreatedAt, sc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Update modifies a schema's own attributes, not its fields.
func (s *SchemaStore) Update(ctx context.Context, sc schema.Schema) error {
	settings, err := schema.EncodeSettings(sc.Settings)
	if err != nil {
		return fmt.Errorf("encode schema settings: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE schemas SET name = ?, title = ?, settings = ?, updated_at = ?
		WHERE id = ?
	`, sc.Name, sc.Title, settings, sc.UpdatedAt, sc.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update schema: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a schema row. Fields cascade via the foreign key;
// documents are removed by the caller through the document lifecycle
// path beforehand.
func (s *SchemaStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM schemas WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete schema: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchema(row rowScanner) (schema.Schema, error) {
	var sc schema.Schema
	var settings string
	if err := row.Scan(&sc.ID, &sc.Name, &sc.Title, &settings, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return schema.Schema{}, err
	}
	var err error
	sc.Settings, err = schema.DecodeSettings(settings)
	if err != nil {
		return schema.Schema{}, fmt.Errorf("decode schema settings: %w", err)
	}
	return sc, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Ensure interface compliance.
var _ ports.SchemaStore = (*SchemaStore)(nil)
