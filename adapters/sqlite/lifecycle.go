package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stencilcms/stencil/domain/schema"
	"github.com/stencilcms/stencil/ports"
)

// fieldLifecycle implements ports.FieldLifecycle. Snapshot, bulk
// rewrite, and field metadata writes share one transaction so they
// commit or roll back together.
type fieldLifecycle struct {
	db    *sql.DB
	clock ports.Clock
}

// NewFieldLifecycle creates the transactional field mutation runner.
func NewFieldLifecycle(db *DB, clock ports.Clock) ports.FieldLifecycle {
	return &fieldLifecycle{db: db.DB, clock: clock}
}

func (l *fieldLifecycle) WithTx(ctx context.Context, fn func(tx ports.LifecycleTx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin field mutation: %w", err)
	}

	if err := fn(&lifecycleTx{tx: tx, clock: l.clock}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit field mutation: %w", err)
	}
	return nil
}

type lifecycleTx struct {
	tx    *sql.Tx
	clock ports.Clock
}

// SnapshotDocuments copies every document of the schema into the
// revision log in one set-based insert. Runs before any rewrite in the
// same transaction, so a restore point exists even if a later step
// fails and forces a rollback.
func (t *lifecycleTx) SnapshotDocuments(ctx context.Context, schemaID string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO document_revisions (id, document_id, schema_id, data, user_id, created_at)
		SELECT lower(hex(randomblob(16))), d.id, d.schema_id, d.data, d.user_id, ?
		FROM documents d
		WHERE d.schema_id = ?
	`, t.clock.Now().UTC(), schemaID)
	if err != nil {
		return 0, fmt.Errorf("snapshot documents: %w", err)
	}
	return res.RowsAffected()
}

func (t *lifecycleTx) SnapshotSchema(ctx context.Context, schemaID, userID string, definition json.RawMessage) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO schema_revisions (id, schema_id, data, user_id, created_at)
		VALUES (lower(hex(randomblob(16))), ?, ?, ?, ?)
	`, schemaID, string(definition), userID, t.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("snapshot schema: %w", err)
	}
	return nil
}

// SetDefaultWhereMissing backfills the default in one pass. json_type
// is SQL NULL only when the key is absent; an explicitly stored JSON
// null is left alone.
func (t *lifecycleTx) SetDefaultWhereMissing(ctx context.Context, schemaID, fieldName string, value json.RawMessage) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE documents
		SET data = json_set(data, '$."' || ?1 || '"', json(?2))
		WHERE schema_id = ?3
		  AND json_type(data, '$."' || ?1 || '"') IS NULL
	`, fieldName, string(value), schemaID)
	if err != nil {
		return fmt.Errorf("backfill default for %s: %w", fieldName, err)
	}
	return nil
}

// RenameKey relocates the value in one statement. The -> operator
// yields the value as JSON text, so booleans and nested structures
// survive the move byte-for-byte.
func (t *lifecycleTx) RenameKey(ctx context.Context, schemaID, oldName, newName string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE documents
		SET data = json_remove(
			json_set(data, '$."' || ?2 || '"', json(data -> ('$."' || ?1 || '"'))),
			'$."' || ?1 || '"'
		)
		WHERE schema_id = ?3
		  AND json_type(data, '$."' || ?1 || '"') IS NOT NULL
	`, oldName, newName, schemaID)
	if err != nil {
		return fmt.Errorf("rename key %s to %s: %w", oldName, newName, err)
	}
	return nil
}

func (t *lifecycleTx) RemoveKey(ctx context.Context, schemaID, fieldName string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE documents
		SET data = json_remove(data, '$."' || ?1 || '"')
		WHERE schema_id = ?2
	`, fieldName, schemaID)
	if err != nil {
		return fmt.Errorf("remove key %s: %w", fieldName, err)
	}
	return nil
}

func (t *lifecycleTx) InsertField(ctx context.Context, f schema.Field) error {
	settings, err := schema.EncodeSettings(f.Settings)
	if err != nil {
		return fmt.Errorf("encode field settings: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO fields (id, schema_id, name, title, description, type, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.SchemaID, f.Name, f.Title, f.Description, f.Type, settings, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert field: %w", err)
	}
	return nil
}

func (t *lifecycleTx) UpdateField(ctx context.Context, f schema.Field) error {
	settings, err := schema.EncodeSettings(f.Settings)
	if err != nil {
		return fmt.Errorf("encode field settings: %w", err)
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE fields
		SET name = ?, title = ?, description = ?, type = ?, settings = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, f.Name, f.Title, f.Description, f.Type, settings, f.UpdatedAt, f.ID)
	if err != nil {
		return fmt.Errorf("update field: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *lifecycleTx) SoftDeleteField(ctx context.Context, id string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE fields SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, at, id)
	if err != nil {
		return fmt.Errorf("soft delete field: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ensure interface compliance.
var _ ports.LifecycleTx = (*lifecycleTx)(nil)
