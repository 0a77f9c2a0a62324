package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stencilcms/stencil/domain/schema"
	"github.com/stencilcms/stencil/ports"
)

// FieldStore implements ports.FieldStore with SQLite. Field writes go
// through the lifecycle transaction, not this store.
type FieldStore struct {
	db *DB
}

// NewFieldStore creates a SQLite-backed field store.
func NewFieldStore(db *DB) *FieldStore {
	return &FieldStore{db: db}
}

const fieldColumns = "id, schema_id, name, title, description, type, settings, created_at, updated_at, deleted_at"

// Get retrieves an active field by ID.
func (s *FieldStore) Get(ctx context.Context, id string) (schema.Field, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+fieldColumns+` FROM fields WHERE id = ? AND deleted_at IS NULL
	`, id)

	f, err := scanField(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schema.Field{}, ErrNotFound
		}
		return schema.Field{}, fmt.Errorf("get field: %w", err)
	}
	return f, nil
}

// FindActive returns the non-deleted fields of a schema in creation order.
func (s *FieldStore) FindActive(ctx context.Context, schemaID string) ([]schema.Field, error) {
	return s.find(ctx, schemaID, true)
}

// FindIncludingDeleted returns all fields of a schema, soft-deleted included.
func (s *FieldStore) FindIncludingDeleted(ctx context.Context, schemaID string) ([]schema.Field, error) {
	return s.find(ctx, schemaID, false)
}

func (s *FieldStore) find(ctx context.Context, schemaID string, activeOnly bool) ([]schema.Field, error) {
	query := `SELECT ` + fieldColumns + ` FROM fields WHERE schema_id = ?`
	if activeOnly {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, schemaID)
	if err != nil {
		return nil, fmt.Errorf("find fields: %w", err)
	}
	defer rows.Close()

	var fields []schema.Field
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func scanField(row rowScanner) (schema.Field, error) {
	var f schema.Field
	var settings string
	var deletedAt sql.NullTime
	err := row.Scan(&f.ID, &f.SchemaID, &f.Name, &f.Title, &f.Description,
		&f.Type, &settings, &f.CreatedAt, &f.UpdatedAt, &deletedAt)
	if err != nil {
		return schema.Field{}, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		f.DeletedAt = &t
	}
	f.Settings, err = schema.DecodeSettings(settings)
	if err != nil {
		return schema.Field{}, fmt.Errorf("decode field settings: %w", err)
	}
	return f, nil
}

// Ensure interface compliance.
var _ ports.FieldStore = (*FieldStore)(nil)
