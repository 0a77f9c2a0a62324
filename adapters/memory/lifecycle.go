package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/schema"
	"github.com/stencilcms/stencil/ports"
)

// FieldLifecycle is an in-memory implementation of ports.FieldLifecycle.
// Rollback works by snapshotting the touched stores up front and
// restoring them when the callback fails.
type FieldLifecycle struct {
	fields    *FieldStore
	documents *DocumentStore
	revisions *RevisionStore
	clock     ports.Clock
	idgen     ports.IDGenerator
}

// NewFieldLifecycle creates an in-memory field mutation runner.
func NewFieldLifecycle(fields *FieldStore, documents *DocumentStore, revisions *RevisionStore, clock ports.Clock, idgen ports.IDGenerator) *FieldLifecycle {
	return &FieldLifecycle{
		fields:    fields,
		documents: documents,
		revisions: revisions,
		clock:     clock,
		idgen:     idgen,
	}
}

// WithTx runs fn with all-or-nothing semantics over the in-memory stores.
func (l *FieldLifecycle) WithTx(ctx context.Context, fn func(tx ports.LifecycleTx) error) error {
	fieldSnap := l.fields.snapshot()
	docSnap := l.documents.snapshot()
	docRevSnap, schemaRevSnap := l.revisions.snapshot()

	if err := fn(&memoryTx{l: l}); err != nil {
		l.fields.restore(fieldSnap)
		l.documents.restore(docSnap)
		l.revisions.restore(docRevSnap, schemaRevSnap)
		return err
	}
	return nil
}

type memoryTx struct {
	l *FieldLifecycle
}

func (t *memoryTx) SnapshotDocuments(ctx context.Context, schemaID string) (int64, error) {
	now := t.l.clock.Now().UTC()
	ids, err := t.l.documents.ListIDsBySchema(ctx, schemaID)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		d, err := t.l.documents.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		r := document.Revision{
			ID:         t.l.idgen.New(),
			DocumentID: d.ID,
			SchemaID:   d.SchemaID,
			Data:       d.Data,
			UserID:     d.UserID,
			CreatedAt:  now,
		}
		if err := t.l.revisions.CreateDocumentRevision(ctx, r); err != nil {
			return 0, err
		}
	}
	return int64(len(ids)), nil
}

func (t *memoryTx) SnapshotSchema(ctx context.Context, schemaID, userID string, definition json.RawMessage) error {
	return t.l.revisions.CreateSchemaRevision(ctx, document.SchemaRevision{
		ID:        t.l.idgen.New(),
		SchemaID:  schemaID,
		Data:      definition,
		UserID:    userID,
		CreatedAt: t.l.clock.Now().UTC(),
	})
}

func (t *memoryTx) SetDefaultWhereMissing(ctx context.Context, schemaID, fieldName string, value json.RawMessage) error {
	t.l.documents.rewrite(schemaID, func(data document.Data) document.Data {
		if data == nil {
			data = document.Data{}
		}
		// An explicitly stored JSON null counts as present.
		if _, ok := data[fieldName]; !ok {
			data[fieldName] = append(json.RawMessage(nil), value...)
		}
		return data
	})
	return nil
}

func (t *memoryTx) RenameKey(ctx context.Context, schemaID, oldName, newName string) error {
	t.l.documents.rewrite(schemaID, func(data document.Data) document.Data {
		if v, ok := data[oldName]; ok {
			data[newName] = v
			delete(data, oldName)
		}
		return data
	})
	return nil
}

func (t *memoryTx) RemoveKey(ctx context.Context, schemaID, fieldName string) error {
	t.l.documents.rewrite(schemaID, func(data document.Data) document.Data {
		delete(data, fieldName)
		return data
	})
	return nil
}

func (t *memoryTx) InsertField(ctx context.Context, f schema.Field) error {
	if _, err := t.l.fields.Get(ctx, f.ID); err == nil {
		return ports.ErrDuplicate
	}
	t.l.fields.put(f)
	return nil
}

func (t *memoryTx) UpdateField(ctx context.Context, f schema.Field) error {
	if _, err := t.l.fields.Get(ctx, f.ID); err != nil {
		return err
	}
	t.l.fields.put(f)
	return nil
}

func (t *memoryTx) SoftDeleteField(ctx context.Context, id string, at time.Time) error {
	if !t.l.fields.softDelete(id, at) {
		return ports.ErrNotFound
	}
	return nil
}

// Ensure interface compliance.
var (
	_ ports.FieldLifecycle = (*FieldLifecycle)(nil)
	_ ports.LifecycleTx    = (*memoryTx)(nil)
)
