// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/schema"
	"github.com/stencilcms/stencil/domain/user"
	"github.com/stencilcms/stencil/domain/webhook"
)

// Sentinel errors returned by store implementations.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides password/API key hashing.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Schema Ports
// -----------------------------------------------------------------------------

// SchemaStore persists schema definitions.
type SchemaStore interface {
	// Get retrieves a schema by ID, including its active fields.
	Get(ctx context.Context, id string) (schema.Schema, error)

	// GetByName retrieves a schema by its unique name.
	GetByName(ctx context.Context, name string) (schema.Schema, error)

	// List returns schemas with their active fields, plus a total count.
	List(ctx context.Context, page, perPage int) ([]schema.Schema, int, error)

	// Create stores a new schema.
	Create(ctx context.Context, s schema.Schema) error

	// Update modifies a schema's own attributes (not its fields).
	Update(ctx context.Context, s schema.Schema) error

	// Delete removes a schema row. Callers cascade documents and fields
	// through their own lifecycle paths first.
	Delete(ctx context.Context, id string) error
}

// FieldStore reads field definitions. Field writes go exclusively
// through the LifecycleTx so every mutation carries its paired
// document rewrite and revision snapshot.
type FieldStore interface {
	// Get retrieves an active field by ID.
	Get(ctx context.Context, id string) (schema.Field, error)

	// FindActive returns the non-deleted fields of a schema, in order.
	FindActive(ctx context.Context, schemaID string) ([]schema.Field, error)

	// FindIncludingDeleted returns all fields of a schema, soft-deleted
	// included.
	FindIncludingDeleted(ctx context.Context, schemaID string) ([]schema.Field, error)
}

// -----------------------------------------------------------------------------
// Field Lifecycle Port
// -----------------------------------------------------------------------------

// FieldLifecycle runs a field mutation as one transaction: revision
// snapshot, bulk document rewrite, and field metadata write commit or
// roll back together. The snapshot statement executes before any
// rewrite inside the same transaction, so a point-in-time restore is
// always available.
type FieldLifecycle interface {
	WithTx(ctx context.Context, fn func(tx LifecycleTx) error) error
}

// LifecycleTx exposes the transactional primitives of the field
// mutation protocol. Rewrites are single set-based statements; field
// names never reach the store as SQL text, only as bind parameters.
type LifecycleTx interface {
	// SnapshotDocuments copies the current data of every document of a
	// schema into the document revision log, carrying each document's
	// own editor id. Returns the number of documents snapshotted.
	SnapshotDocuments(ctx context.Context, schemaID string) (int64, error)

	// SnapshotSchema copies a serialized schema definition into the
	// schema revision log.
	SnapshotSchema(ctx context.Context, schemaID, userID string, definition json.RawMessage) error

	// SetDefaultWhereMissing backfills a default value under fieldName
	// for every document of the schema where the key is absent. An
	// explicitly stored JSON null counts as present and is preserved.
	SetDefaultWhereMissing(ctx context.Context, schemaID, fieldName string, value json.RawMessage) error

	// RenameKey moves the value under oldName to newName in every
	// document of the schema, removing the old key in the same
	// statement.
	RenameKey(ctx context.Context, schemaID, oldName, newName string) error

	// RemoveKey strips fieldName from every document of the schema.
	RemoveKey(ctx context.Context, schemaID, fieldName string) error

	// InsertField persists a new field definition.
	InsertField(ctx context.Context, f schema.Field) error

	// UpdateField persists changed field attributes.
	UpdateField(ctx context.Context, f schema.Field) error

	// SoftDeleteField marks a field deleted without dropping the row.
	SoftDeleteField(ctx context.Context, id string, at time.Time) error
}

// -----------------------------------------------------------------------------
// Document Ports
// -----------------------------------------------------------------------------

// DocumentFilter is an equality predicate on one field's value.
type DocumentFilter struct {
	Field string
	Value json.RawMessage
}

// DocumentQuery describes a document listing.
type DocumentQuery struct {
	SchemaID string
	Filters  []DocumentFilter
	Page     int
	PerPage  int
}

// DocumentStore persists documents.
type DocumentStore interface {
	// Get retrieves a document by ID.
	Get(ctx context.Context, id string) (document.Document, error)

	// Find returns documents matching the query ordered by updatedAt
	// descending, plus the total match count.
	Find(ctx context.Context, q DocumentQuery) ([]document.Document, int, error)

	// Search returns documents whose data contains the term, best match
	// first. schemaID narrows the search when non-empty.
	Search(ctx context.Context, term, schemaID string, page, perPage int) ([]document.Document, int, error)

	// Create stores a new document.
	Create(ctx context.Context, d document.Document) error

	// Update overwrites a document's data and editor.
	Update(ctx context.Context, d document.Document) error

	// Delete removes a document.
	Delete(ctx context.Context, id string) error

	// ListIDsBySchema returns all document ids of a schema, for cascade
	// removal through the document lifecycle path.
	ListIDsBySchema(ctx context.Context, schemaID string) ([]string, error)
}

// RevisionStore persists the append-only revision logs.
type RevisionStore interface {
	// CreateDocumentRevision appends a document snapshot.
	CreateDocumentRevision(ctx context.Context, r document.Revision) error

	// ListByDocument returns a document's revisions, newest first.
	ListByDocument(ctx context.Context, documentID string) ([]document.Revision, error)

	// CreateSchemaRevision appends a schema snapshot.
	CreateSchemaRevision(ctx context.Context, r document.SchemaRevision) error

	// ListBySchema returns a schema's revisions, newest first.
	ListBySchema(ctx context.Context, schemaID string) ([]document.SchemaRevision, error)
}

// -----------------------------------------------------------------------------
// User Ports
// -----------------------------------------------------------------------------

// UserStore persists user accounts.
type UserStore interface {
	// Get retrieves a user by ID.
	Get(ctx context.Context, id string) (user.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (user.User, error)

	// List returns users ordered by updatedAt descending, plus a total.
	List(ctx context.Context, page, perPage int) ([]user.User, int, error)

	// Create stores a new user.
	Create(ctx context.Context, u user.User) error

	// Update modifies an existing user.
	Update(ctx context.Context, u user.User) error

	// Delete removes a user.
	Delete(ctx context.Context, id string) error
}

// RoleStore persists roles.
type RoleStore interface {
	// Get retrieves a role by name.
	Get(ctx context.Context, name string) (user.Role, error)

	// List returns all roles.
	List(ctx context.Context) ([]user.Role, error)

	// Create stores a new role.
	Create(ctx context.Context, r user.Role) error

	// Update modifies a role's scopes.
	Update(ctx context.Context, r user.Role) error

	// Delete removes a role.
	Delete(ctx context.Context, name string) error
}

// -----------------------------------------------------------------------------
// Webhook Ports
// -----------------------------------------------------------------------------

// WebhookStore persists webhook configurations.
type WebhookStore interface {
	// Get retrieves a webhook by ID.
	Get(ctx context.Context, id string) (webhook.Webhook, error)

	// List returns all webhooks.
	List(ctx context.Context) ([]webhook.Webhook, error)

	// ListEnabled returns only enabled webhooks.
	ListEnabled(ctx context.Context) ([]webhook.Webhook, error)

	// Create stores a new webhook.
	Create(ctx context.Context, w webhook.Webhook) error

	// Update modifies an existing webhook.
	Update(ctx context.Context, w webhook.Webhook) error

	// Delete removes a webhook.
	Delete(ctx context.Context, id string) error
}

// WebhookCallStore persists the append-only dispatch audit log.
type WebhookCallStore interface {
	// Create appends a call record.
	Create(ctx context.Context, c webhook.Call) error

	// Get retrieves a call by ID.
	Get(ctx context.Context, id string) (webhook.Call, error)

	// List returns calls ordered by executedAt descending, plus a total.
	// An empty webhookID matches all webhooks.
	List(ctx context.Context, webhookID string, page, perPage int) ([]webhook.Call, int, error)

	// Delete removes a call record (admin cleanup only).
	Delete(ctx context.Context, id string) error
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// EmailSender sends emails. Delivery is best-effort from the core's
// perspective; failures never block the originating mutation.
type EmailSender interface {
	// Send sends an email.
	Send(ctx context.Context, msg EmailMessage) error

	// SendWelcome sends a welcome email to a new user.
	SendWelcome(ctx context.Context, to, name string) error
}

// Claims carries the identity encoded in a session token.
type Claims struct {
	UserID string
	Email  string
}

// TokenAuthority issues and verifies session tokens.
type TokenAuthority interface {
	// Issue creates a signed token for a user.
	Issue(claims Claims, ttl time.Duration) (string, error)

	// Verify validates a token and returns its claims.
	Verify(token string) (Claims, error)
}
