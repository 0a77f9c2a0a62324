package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stencilcms/stencil/core/events"
	"github.com/stencilcms/stencil/domain/schema"
	"github.com/stencilcms/stencil/domain/webhook"
	"github.com/stencilcms/stencil/fields"
	"github.com/stencilcms/stencil/ports"
)

// FieldService runs the field mutation protocol. Every mutation is one
// transaction: snapshot all documents of the schema, snapshot the
// schema definition, rewrite document payloads in a single set-based
// pass, then write the field metadata. Failure anywhere rolls the whole
// mutation back; the reload notification fires only after commit.
type FieldService struct {
	schemas   ports.SchemaStore
	fields    ports.FieldStore
	lifecycle ports.FieldLifecycle
	registry  *fields.Registry
	bus       *events.Bus
	notifier  Notifier
	clock     ports.Clock
	idgen     ports.IDGenerator
	logger    zerolog.Logger
}

// NewFieldService creates a field service.
func NewFieldService(
	schemas ports.SchemaStore,
	fieldStore ports.FieldStore,
	lifecycle ports.FieldLifecycle,
	registry *fields.Registry,
	bus *events.Bus,
	notifier Notifier,
	clock ports.Clock,
	idgen ports.IDGenerator,
	logger zerolog.Logger,
) *FieldService {
	return &FieldService{
		schemas:   schemas,
		fields:    fieldStore,
		lifecycle: lifecycle,
		registry:  registry,
		bus:       bus,
		notifier:  notifier,
		clock:     clock,
		idgen:     idgen,
		logger:    logger,
	}
}

// FieldInput describes a new field.
type FieldInput struct {
	Name        string
	Title       string
	Description string
	Type        string
	Settings    schema.Settings
}

// Get retrieves an active field by ID.
func (s *FieldService) Get(ctx context.Context, id string) (schema.Field, error) {
	return s.fields.Get(ctx, id)
}

// ListBySchema returns the active fields of a schema.
func (s *FieldService) ListBySchema(ctx context.Context, schemaID string) ([]schema.Field, error) {
	return s.fields.FindActive(ctx, schemaID)
}

// Shapes composes a schema's document input/output/filter shapes from
// its fields' capability bundles. Reference fields resolve their target
// against the full schema set.
func (s *FieldService) Shapes(ctx context.Context, schemaID string) (fields.DocumentShape, error) {
	sc, err := s.schemas.Get(ctx, schemaID)
	if err != nil {
		return fields.DocumentShape{}, err
	}

	var all []schema.Schema
	for page := 1; ; page++ {
		batch, total, err := s.schemas.List(ctx, page, 100)
		if err != nil {
			return fields.DocumentShape{}, wrapStoreErr("list schemas", err)
		}
		all = append(all, batch...)
		if len(batch) == 0 || len(all) >= total {
			break
		}
	}

	return s.registry.DocumentShapes(sc, all)
}

// Create adds a field to a schema. Existing documents missing the key
// receive the field's default in the same transaction that snapshots
// their prior state.
func (s *FieldService) Create(ctx context.Context, userID, schemaID string, in FieldInput) (schema.Field, error) {
	sc, err := s.schemas.Get(ctx, schemaID)
	if err != nil {
		return schema.Field{}, err
	}

	if ok, msg := schema.ValidateFieldName(in.Name); !ok {
		return schema.Field{}, NewValidationError("name", msg)
	}
	if schema.HasFieldNamed(sc.Fields, in.Name) {
		return schema.Field{}, NewValidationError("name", "Field name already in use")
	}
	if in.Title == "" {
		return schema.Field{}, NewValidationError("title", "Title is required")
	}

	ftype, err := s.registry.Lookup(in.Type)
	if err != nil {
		return schema.Field{}, NewValidationError("type", err.Error())
	}

	now := s.clock.Now().UTC()
	f := schema.Field{
		ID:          s.idgen.New(),
		SchemaID:    schemaID,
		Name:        in.Name,
		Title:       in.Title,
		Description: in.Description,
		Type:        in.Type,
		Settings:    in.Settings,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	defaultValue, err := s.resolveDefault(f, ftype)
	if err != nil {
		return schema.Field{}, err
	}

	if hooks, ok := ftype.(fields.Hooks); ok {
		if err := hooks.OnFieldCreate(f); err != nil {
			return schema.Field{}, NewValidationError("settings", err.Error())
		}
	}

	definition, err := serializeDefinition(ctx, s.fields, sc)
	if err != nil {
		return schema.Field{}, wrapStoreErr("serialize schema definition", err)
	}

	err = s.lifecycle.WithTx(ctx, func(tx ports.LifecycleTx) error {
		if _, err := tx.SnapshotDocuments(ctx, schemaID); err != nil {
			return err
		}
		if err := tx.SnapshotSchema(ctx, schemaID, userID, definition); err != nil {
			return err
		}
		if err := tx.InsertField(ctx, f); err != nil {
			return err
		}
		if defaultValue != nil {
			return tx.SetDefaultWhereMissing(ctx, schemaID, f.Name, defaultValue)
		}
		return nil
	})
	if err != nil {
		return schema.Field{}, wrapStoreErr("create field", err)
	}

	s.logger.Info().
		Str("schema_id", schemaID).
		Str("field_id", f.ID).
		Str("name", f.Name).
		Str("type", f.Type).
		Msg("field created")
	s.announce(ctx, webhook.EventFieldCreated, f, userID)
	return f, nil
}

// Update applies a partial update to a field. A name change bulk-renames
// the key in every document of the schema inside the same transaction.
func (s *FieldService) Update(ctx context.Context, userID, fieldID string, upd schema.FieldUpdate) (schema.Field, error) {
	current, err := s.fields.Get(ctx, fieldID)
	if err != nil {
		return schema.Field{}, err
	}
	sc, err := s.schemas.Get(ctx, current.SchemaID)
	if err != nil {
		return schema.Field{}, err
	}

	renamed := false
	if upd.Name != nil {
		if *upd.Name == current.Name {
			return schema.Field{}, NewValidationError("name", "New field name matches the current name")
		}
		if ok, msg := schema.ValidateFieldName(*upd.Name); !ok {
			return schema.Field{}, NewValidationError("name", msg)
		}
		if schema.HasFieldNamed(sc.Fields, *upd.Name) {
			return schema.Field{}, NewValidationError("name", "Field name already in use")
		}
		renamed = true
	}

	next := upd.Apply(current)
	if next.Title == "" {
		return schema.Field{}, NewValidationError("title", "Title is required")
	}

	ftype, err := s.registry.Lookup(next.Type)
	if err != nil {
		return schema.Field{}, NewValidationError("type", err.Error())
	}
	if hooks, ok := ftype.(fields.Hooks); ok {
		if err := hooks.OnFieldUpdate(next); err != nil {
			return schema.Field{}, NewValidationError("settings", err.Error())
		}
	}

	definition, err := serializeDefinition(ctx, s.fields, sc)
	if err != nil {
		return schema.Field{}, wrapStoreErr("serialize schema definition", err)
	}

	next.UpdatedAt = s.clock.Now().UTC()
	err = s.lifecycle.WithTx(ctx, func(tx ports.LifecycleTx) error {
		if _, err := tx.SnapshotDocuments(ctx, current.SchemaID); err != nil {
			return err
		}
		if err := tx.SnapshotSchema(ctx, current.SchemaID, userID, definition); err != nil {
			return err
		}
		if renamed {
			if err := tx.RenameKey(ctx, current.SchemaID, current.Name, next.Name); err != nil {
				return err
			}
		}
		return tx.UpdateField(ctx, next)
	})
	if err != nil {
		return schema.Field{}, wrapStoreErr("update field", err)
	}

	s.logger.Info().
		Str("schema_id", current.SchemaID).
		Str("field_id", fieldID).
		Bool("renamed", renamed).
		Msg("field updated")
	s.announce(ctx, webhook.EventFieldUpdated, next, userID)
	return next, nil
}

// Remove soft-deletes a field and strips its key from every document of
// the schema. Returns false when the field does not exist.
func (s *FieldService) Remove(ctx context.Context, userID, fieldID string) (bool, error) {
	current, err := s.fields.Get(ctx, fieldID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	sc, err := s.schemas.Get(ctx, current.SchemaID)
	if err != nil {
		return false, err
	}

	definition, err := serializeDefinition(ctx, s.fields, sc)
	if err != nil {
		return false, wrapStoreErr("serialize schema definition", err)
	}

	err = s.lifecycle.WithTx(ctx, func(tx ports.LifecycleTx) error {
		if _, err := tx.SnapshotDocuments(ctx, current.SchemaID); err != nil {
			return err
		}
		if err := tx.SnapshotSchema(ctx, current.SchemaID, userID, definition); err != nil {
			return err
		}
		if err := tx.RemoveKey(ctx, current.SchemaID, current.Name); err != nil {
			return err
		}
		return tx.SoftDeleteField(ctx, fieldID, s.clock.Now().UTC())
	})
	if err != nil {
		return false, wrapStoreErr("remove field", err)
	}

	s.logger.Info().
		Str("schema_id", current.SchemaID).
		Str("field_id", fieldID).
		Str("name", current.Name).
		Msg("field removed")
	s.announce(ctx, webhook.EventFieldRemoved, current, userID)
	return true, nil
}

// resolveDefault picks the explicit settings default over the type
// default and validates it against the field's settings. A nil return
// means nothing to backfill.
func (s *FieldService) resolveDefault(f schema.Field, ftype fields.Type) (json.RawMessage, error) {
	value, ok := f.DefaultValue()
	if !ok {
		value = ftype.DefaultValue()
	}
	if value == nil {
		return nil, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode default value: %w", err)
	}
	if err := ftype.ValidateValue(raw, f.Settings); err != nil {
		return nil, NewValidationError("default", err.Error())
	}
	return raw, nil
}

func (s *FieldService) announce(ctx context.Context, eventType webhook.EventType, f schema.Field, userID string) {
	s.bus.Emit(ctx, events.Event{Name: events.Reload, Data: map[string]any{"schemaId": f.SchemaID}})
	s.notifier.Notify(ctx, webhook.Event{
		ID:        webhook.GenerateEventID(),
		Type:      eventType,
		SchemaID:  f.SchemaID,
		UserID:    userID,
		Timestamp: s.clock.Now().UTC(),
		Data:      map[string]any{"fieldId": f.ID, "name": f.Name, "type": f.Type},
	})
}
