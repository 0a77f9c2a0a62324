package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/stencilcms/stencil/core/events"
	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/schema"
	"github.com/stencilcms/stencil/domain/webhook"
	"github.com/stencilcms/stencil/ports"
)

// SchemaService manages content schemas. Structural changes snapshot
// the prior definition and announce themselves on the bus so the
// dynamic API surface can rebuild.
type SchemaService struct {
	schemas   ports.SchemaStore
	fields    ports.FieldStore
	documents ports.DocumentStore
	revisions ports.RevisionStore
	lifecycle ports.FieldLifecycle
	bus       *events.Bus
	notifier  Notifier
	clock     ports.Clock
	idgen     ports.IDGenerator
	logger    zerolog.Logger
}

// NewSchemaService creates a schema service.
func NewSchemaService(
	schemas ports.SchemaStore,
	fields ports.FieldStore,
	documents ports.DocumentStore,
	revisions ports.RevisionStore,
	lifecycle ports.FieldLifecycle,
	bus *events.Bus,
	notifier Notifier,
	clock ports.Clock,
	idgen ports.IDGenerator,
	logger zerolog.Logger,
) *SchemaService {
	return &SchemaService{
		schemas:   schemas,
		fields:    fields,
		documents: documents,
		revisions: revisions,
		lifecycle: lifecycle,
		bus:       bus,
		notifier:  notifier,
		clock:     clock,
		idgen:     idgen,
		logger:    logger,
	}
}

// CreateSchemaInput describes a new schema.
type CreateSchemaInput struct {
	Name     string // derived from Title when empty
	Title    string
	Settings schema.Settings
}

// UpdateSchemaInput is a partial schema update. Nil pointers mean
// "leave unchanged".
type UpdateSchemaInput struct {
	Name     *string
	Title    *string
	Settings *schema.Settings
}

// Get retrieves a schema by ID with its active fields.
func (s *SchemaService) Get(ctx context.Context, id string) (schema.Schema, error) {
	return s.schemas.Get(ctx, id)
}

// GetByName retrieves a schema by its unique name.
func (s *SchemaService) GetByName(ctx context.Context, name string) (schema.Schema, error) {
	return s.schemas.GetByName(ctx, name)
}

// List returns schemas plus pagination metadata.
func (s *SchemaService) List(ctx context.Context, page, perPage int) ([]schema.Schema, document.Page, error) {
	page, perPage = document.NormalizePage(page, perPage)
	schemas, total, err := s.schemas.List(ctx, page, perPage)
	if err != nil {
		return nil, document.Page{}, wrapStoreErr("list schemas", err)
	}
	return schemas, document.Page{TotalItems: total, CurrentPage: page, PerPage: perPage}, nil
}

// Create creates a schema and announces it.
func (s *SchemaService) Create(ctx context.Context, userID string, in CreateSchemaInput) (schema.Schema, error) {
	name := in.Name
	if name == "" {
		name = schema.Slugify(in.Title)
	}
	if ok, msg := schema.ValidateName(name); !ok {
		return schema.Schema{}, NewValidationError("name", msg)
	}
	if in.Title == "" {
		return schema.Schema{}, NewValidationError("title", "Title is required")
	}

	now := s.clock.Now().UTC()
	sc := schema.Schema{
		ID:        s.idgen.New(),
		Name:      name,
		Title:     in.Title,
		Settings:  in.Settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.schemas.Create(ctx, sc); err != nil {
		if errors.Is(err, ErrConflict) {
			return schema.Schema{}, ErrConflict
		}
		return schema.Schema{}, wrapStoreErr("create schema", err)
	}

	s.logger.Info().Str("schema_id", sc.ID).Str("name", sc.Name).Msg("schema created")
	s.announce(ctx, webhook.EventSchemaCreated, sc, userID)
	return sc, nil
}

// Update modifies a schema's own attributes. The prior definition is
// snapshotted before the write.
func (s *SchemaService) Update(ctx context.Context, userID, id string, in UpdateSchemaInput) (schema.Schema, error) {
	sc, err := s.schemas.Get(ctx, id)
	if err != nil {
		return schema.Schema{}, err
	}

	if in.Name != nil && *in.Name != sc.Name {
		if ok, msg := schema.ValidateName(*in.Name); !ok {
			return schema.Schema{}, NewValidationError("name", msg)
		}
		sc.Name = *in.Name
	}
	if in.Title != nil {
		if *in.Title == "" {
			return schema.Schema{}, NewValidationError("title", "Title is required")
		}
		sc.Title = *in.Title
	}
	if in.Settings != nil {
		sc.Settings = *in.Settings
	}

	if err := s.snapshotDefinition(ctx, id, userID); err != nil {
		return schema.Schema{}, err
	}

	sc.UpdatedAt = s.clock.Now().UTC()
	if err := s.schemas.Update(ctx, sc); err != nil {
		if errors.Is(err, ErrConflict) {
			return schema.Schema{}, ErrConflict
		}
		return schema.Schema{}, wrapStoreErr("update schema", err)
	}

	s.logger.Info().Str("schema_id", sc.ID).Msg("schema updated")
	s.announce(ctx, webhook.EventSchemaUpdated, sc, userID)
	return s.schemas.Get(ctx, id)
}

// Remove deletes a schema. Without cascade, removal is refused while
// documents still exist. With cascade, every document is snapshotted
// and removed through the revision log first. Returns false when the
// schema does not exist.
func (s *SchemaService) Remove(ctx context.Context, userID, id string, cascade bool) (bool, error) {
	sc, err := s.schemas.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ids, err := s.documents.ListIDsBySchema(ctx, id)
	if err != nil {
		return false, wrapStoreErr("list schema documents", err)
	}
	if len(ids) > 0 && !cascade {
		return false, NewValidationError("cascade", "Schema has documents; removal requires cascade")
	}

	err = s.lifecycle.WithTx(ctx, func(tx ports.LifecycleTx) error {
		if _, err := tx.SnapshotDocuments(ctx, id); err != nil {
			return err
		}
		definition, err := serializeDefinition(ctx, s.fields, sc)
		if err != nil {
			return err
		}
		return tx.SnapshotSchema(ctx, id, userID, definition)
	})
	if err != nil {
		return false, wrapStoreErr("snapshot schema removal", err)
	}

	for _, docID := range ids {
		if err := s.documents.Delete(ctx, docID); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return false, wrapStoreErr("cascade document removal", err)
		}
		s.notify(ctx, webhook.EventDocumentDeleted, id, userID, map[string]any{"documentId": docID, "schemaId": id})
	}
	if err := s.schemas.Delete(ctx, id); err != nil {
		return false, wrapStoreErr("delete schema", err)
	}
	// Field rows go with the schema; listeners still hear about each one.
	for _, f := range schema.ActiveFields(sc.Fields) {
		s.notify(ctx, webhook.EventFieldRemoved, id, userID, map[string]any{"fieldId": f.ID, "name": f.Name, "type": f.Type})
	}

	s.logger.Info().Str("schema_id", id).Int("documents", len(ids)).Msg("schema removed")
	s.announce(ctx, webhook.EventSchemaRemoved, sc, userID)
	return true, nil
}

// Revisions returns a schema's definition snapshots, newest first.
func (s *SchemaService) Revisions(ctx context.Context, schemaID string) ([]document.SchemaRevision, error) {
	return s.revisions.ListBySchema(ctx, schemaID)
}

func (s *SchemaService) snapshotDefinition(ctx context.Context, schemaID, userID string) error {
	sc, err := s.schemas.Get(ctx, schemaID)
	if err != nil {
		return err
	}
	definition, err := serializeDefinition(ctx, s.fields, sc)
	if err != nil {
		return err
	}
	return s.revisions.CreateSchemaRevision(ctx, document.SchemaRevision{
		ID:        s.idgen.New(),
		SchemaID:  schemaID,
		Data:      definition,
		UserID:    userID,
		CreatedAt: s.clock.Now().UTC(),
	})
}

// announce emits reload on the bus and fans the event out to webhooks.
// Both happen after the mutation committed; neither can undo it.
func (s *SchemaService) announce(ctx context.Context, eventType webhook.EventType, sc schema.Schema, userID string) {
	s.bus.Emit(ctx, events.Event{Name: events.Reload, Data: map[string]any{"schemaId": sc.ID}})
	s.notify(ctx, eventType, sc.ID, userID, map[string]any{"schemaId": sc.ID, "name": sc.Name})
}

// notify fans a single event out to webhooks without touching the bus.
// Cascade removal uses it to report each casualty individually.
func (s *SchemaService) notify(ctx context.Context, eventType webhook.EventType, schemaID, userID string, data map[string]any) {
	s.notifier.Notify(ctx, webhook.Event{
		ID:        webhook.GenerateEventID(),
		Type:      eventType,
		SchemaID:  schemaID,
		UserID:    userID,
		Timestamp: s.clock.Now().UTC(),
		Data:      data,
	})
}

// serializeDefinition captures a schema and its fields (soft-deleted
// included) as the revision payload.
func serializeDefinition(ctx context.Context, fields ports.FieldStore, sc schema.Schema) (json.RawMessage, error) {
	all, err := fields.FindIncludingDeleted(ctx, sc.ID)
	if err != nil {
		return nil, err
	}

	type fieldDef struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Title       string          `json:"title"`
		Description string          `json:"description,omitempty"`
		Type        string          `json:"type"`
		Settings    schema.Settings `json:"settings"`
		Deleted     bool            `json:"deleted,omitempty"`
	}
	type schemaDef struct {
		ID       string          `json:"id"`
		Name     string          `json:"name"`
		Title    string          `json:"title"`
		Settings schema.Settings `json:"settings"`
		Fields   []fieldDef      `json:"fields"`
	}

	def := schemaDef{
		ID:       sc.ID,
		Name:     sc.Name,
		Title:    sc.Title,
		Settings: sc.Settings,
		Fields:   make([]fieldDef, 0, len(all)),
	}
	for _, f := range all {
		def.Fields = append(def.Fields, fieldDef{
			ID:          f.ID,
			Name:        f.Name,
			Title:       f.Title,
			Description: f.Description,
			Type:        f.Type,
			Settings:    f.Settings,
			Deleted:     f.IsDeleted(),
		})
	}
	return json.Marshal(def)
}
