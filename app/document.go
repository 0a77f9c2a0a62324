package app

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/schema"
	"github.com/stencilcms/stencil/domain/webhook"
	"github.com/stencilcms/stencil/fields"
	"github.com/stencilcms/stencil/ports"
)

// DocumentService manages schema-conformant documents. Writes validate
// every payload key against the schema's active fields; unknown keys
// are rejected, never dropped.
type DocumentService struct {
	documents ports.DocumentStore
	schemas   ports.SchemaStore
	revisions ports.RevisionStore
	registry  *fields.Registry
	notifier  Notifier
	clock     ports.Clock
	idgen     ports.IDGenerator
	logger    zerolog.Logger
}

// NewDocumentService creates a document service.
func NewDocumentService(
	documents ports.DocumentStore,
	schemas ports.SchemaStore,
	revisions ports.RevisionStore,
	registry *fields.Registry,
	notifier Notifier,
	clock ports.Clock,
	idgen ports.IDGenerator,
	logger zerolog.Logger,
) *DocumentService {
	return &DocumentService{
		documents: documents,
		schemas:   schemas,
		revisions: revisions,
		registry:  registry,
		notifier:  notifier,
		clock:     clock,
		idgen:     idgen,
		logger:    logger,
	}
}

// UpdateOptions tunes document updates.
type UpdateOptions struct {
	// SkipRevision suppresses the pre-update snapshot. Used by internal
	// rewrite paths that have already snapshotted.
	SkipRevision bool
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, id string) (document.Document, error) {
	return s.documents.Get(ctx, id)
}

// Find returns documents of a schema matching the filters, newest
// update first, plus pagination metadata.
func (s *DocumentService) Find(ctx context.Context, q ports.DocumentQuery) ([]document.Document, document.Page, error) {
	q.Page, q.PerPage = document.NormalizePage(q.Page, q.PerPage)
	docs, total, err := s.documents.Find(ctx, q)
	if err != nil {
		return nil, document.Page{}, wrapStoreErr("find documents", err)
	}
	return docs, document.Page{TotalItems: total, CurrentPage: q.Page, PerPage: q.PerPage}, nil
}

// Search returns documents whose data contains the term.
func (s *DocumentService) Search(ctx context.Context, term, schemaID string, page, perPage int) ([]document.Document, document.Page, error) {
	if strings.TrimSpace(term) == "" {
		return nil, document.Page{}, NewValidationError("term", "Search term is required")
	}
	page, perPage = document.NormalizePage(page, perPage)
	docs, total, err := s.documents.Search(ctx, term, schemaID, page, perPage)
	if err != nil {
		return nil, document.Page{}, wrapStoreErr("search documents", err)
	}
	return docs, document.Page{TotalItems: total, CurrentPage: page, PerPage: perPage}, nil
}

// Create validates and stores a new document.
func (s *DocumentService) Create(ctx context.Context, userID, schemaID string, data document.Data) (document.Document, error) {
	sc, err := s.schemas.Get(ctx, schemaID)
	if err != nil {
		return document.Document{}, err
	}
	if err := s.validateData(sc, data); err != nil {
		return document.Document{}, err
	}

	now := s.clock.Now().UTC()
	d := document.Document{
		ID:        s.idgen.New(),
		SchemaID:  schemaID,
		Data:      data.Clone(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.documents.Create(ctx, d); err != nil {
		return document.Document{}, wrapStoreErr("create document", err)
	}

	s.logger.Info().Str("document_id", d.ID).Str("schema_id", schemaID).Msg("document created")
	s.announce(ctx, webhook.EventDocumentCreated, d, userID)
	return d, nil
}

// Update validates and overwrites a document's data. The prior state is
// snapshotted into the revision log unless opts.SkipRevision is set.
func (s *DocumentService) Update(ctx context.Context, userID, id string, data document.Data, opts UpdateOptions) (document.Document, error) {
	current, err := s.documents.Get(ctx, id)
	if err != nil {
		return document.Document{}, err
	}
	sc, err := s.schemas.Get(ctx, current.SchemaID)
	if err != nil {
		return document.Document{}, err
	}
	if err := s.validateData(sc, data); err != nil {
		return document.Document{}, err
	}

	if !opts.SkipRevision {
		if err := s.snapshot(ctx, current); err != nil {
			return document.Document{}, wrapStoreErr("snapshot document", err)
		}
	}

	current.Data = data.Clone()
	current.UserID = userID
	current.UpdatedAt = s.clock.Now().UTC()
	if err := s.documents.Update(ctx, current); err != nil {
		return document.Document{}, wrapStoreErr("update document", err)
	}

	s.logger.Info().Str("document_id", id).Msg("document updated")
	s.announce(ctx, webhook.EventDocumentUpdated, current, userID)
	return current, nil
}

// Remove deletes a document, snapshotting its final state first so the
// content is recoverable from the revision log. Returns false when the
// document does not exist.
func (s *DocumentService) Remove(ctx context.Context, userID, id string) (bool, error) {
	current, err := s.documents.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.snapshot(ctx, current); err != nil {
		return false, wrapStoreErr("snapshot document", err)
	}
	if err := s.documents.Delete(ctx, id); err != nil {
		return false, wrapStoreErr("delete document", err)
	}

	s.logger.Info().Str("document_id", id).Msg("document removed")
	s.announce(ctx, webhook.EventDocumentDeleted, current, userID)
	return true, nil
}

// Revisions returns a document's snapshots, newest first.
func (s *DocumentService) Revisions(ctx context.Context, documentID string) ([]document.Revision, error) {
	return s.revisions.ListByDocument(ctx, documentID)
}

// validateData rejects unknown keys and type-invalid values.
func (s *DocumentService) validateData(sc schema.Schema, data document.Data) error {
	allowed := make(map[string]bool, len(sc.Fields))
	for _, f := range sc.Fields {
		allowed[f.Name] = true
	}
	if unknown := data.UnknownKeys(allowed); len(unknown) > 0 {
		errs := make(map[string]string, len(unknown))
		for _, k := range unknown {
			errs[k] = "Unknown field"
		}
		return &ValidationError{Errors: errs}
	}

	errs := make(map[string]string)
	for _, f := range sc.Fields {
		raw, ok := data[f.Name]
		if !ok {
			continue
		}
		ftype, err := s.registry.Lookup(f.Type)
		if err != nil {
			// A field with an unregistered type cannot be validated;
			// refuse the write rather than persist unchecked data.
			errs[f.Name] = err.Error()
			continue
		}
		if err := ftype.ValidateValue(raw, f.Settings); err != nil {
			errs[f.Name] = err.Error()
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func (s *DocumentService) snapshot(ctx context.Context, d document.Document) error {
	return s.revisions.CreateDocumentRevision(ctx, document.Revision{
		ID:         s.idgen.New(),
		DocumentID: d.ID,
		SchemaID:   d.SchemaID,
		Data:       d.Data.Clone(),
		UserID:     d.UserID,
		CreatedAt:  s.clock.Now().UTC(),
	})
}

func (s *DocumentService) announce(ctx context.Context, eventType webhook.EventType, d document.Document, userID string) {
	s.notifier.Notify(ctx, webhook.Event{
		ID:        webhook.GenerateEventID(),
		Type:      eventType,
		SchemaID:  d.SchemaID,
		UserID:    userID,
		Timestamp: s.clock.Now().UTC(),
		Data:      map[string]any{"documentId": d.ID, "schemaId": d.SchemaID},
	})
}
