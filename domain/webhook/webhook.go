// Package webhook provides value types and pure functions for webhook
// fan-out. Webhooks receive HTTP callbacks when content or schema
// definitions change. All types are immutable values; all functions are
// pure.
package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// EventType represents a type of event that can trigger a webhook.
type EventType string

// Supported event types
const (
	EventDocumentCreated EventType = "document.created"
	EventDocumentUpdated EventType = "document.updated"
	EventDocumentDeleted EventType = "document.deleted"
	EventFieldCreated    EventType = "field.created"
	EventFieldUpdated    EventType = "field.updated"
	EventFieldRemoved    EventType = "field.removed"
	EventSchemaCreated   EventType = "schema.created"
	EventSchemaUpdated   EventType = "schema.updated"
	EventSchemaRemoved   EventType = "schema.removed"
	EventUserCreated     EventType = "user.created"
	EventTest            EventType = "test"
)

// AllEventTypes returns all supported event types.
func AllEventTypes() []EventType {
	return []EventType{
		EventDocumentCreated,
		EventDocumentUpdated,
		EventDocumentDeleted,
		EventFieldCreated,
		EventFieldUpdated,
		EventFieldRemoved,
		EventSchemaCreated,
		EventSchemaUpdated,
		EventSchemaRemoved,
		EventUserCreated,
		EventTest,
	}
}

// Webhook represents a webhook configuration (value type).
type Webhook struct {
	ID        string
	Name      string
	URL       string
	Method    string      // HTTP method, default POST
	Secret    string      // HMAC-SHA256 signing secret
	Events    []EventType // Events this webhook subscribes to
	SchemaIDs []string    // Empty = all schemas
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Call records one dispatch attempt, success or failure. Calls are an
// append-only audit log and are never mutated.
type Call struct {
	ID         string
	WebhookID  string
	EventType  EventType
	Request    string // JSON payload sent
	Response   string // response body (truncated)
	Status     int    // HTTP response status; 0 = transport error
	Success    bool
	ExecutedAt time.Time
}

// Event represents a content-change event to be fanned out (value type).
type Event struct {
	ID        string
	Type      EventType
	SchemaID  string // schema the change belongs to; empty for user events
	UserID    string // principal that triggered the change
	Timestamp time.Time
	Data      map[string]any
}

// Payload is the body sent to the webhook endpoint.
type Payload struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	SchemaID  string         `json:"schemaId,omitempty"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// GenerateSecret generates a random webhook signing secret.
func GenerateSecret() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return "whsec_" + hex.EncodeToString(bytes)
}

// GenerateEventID generates a unique event ID.
func GenerateEventID() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return "evt_" + hex.EncodeToString(bytes)
}

// SignPayload signs a payload with the webhook secret using HMAC-SHA256.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies that a signature matches the payload.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// BuildPayload creates a webhook payload from an event.
func BuildPayload(event Event) Payload {
	return Payload{
		ID:        event.ID,
		Type:      string(event.Type),
		SchemaID:  event.SchemaID,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Data:      event.Data,
	}
}

// SerializePayload serializes a payload to JSON bytes.
func SerializePayload(payload Payload) ([]byte, error) {
	return json.Marshal(payload)
}

// Matches checks whether a webhook should fire for a given event:
// enabled, subscribed to the event type, and either unscoped or scoped
// to the event's schema.
func Matches(w Webhook, event Event) bool {
	if !w.Enabled {
		return false
	}

	subscribed := false
	for _, e := range w.Events {
		if e == event.Type {
			subscribed = true
			break
		}
	}
	if !subscribed {
		return false
	}

	if len(w.SchemaIDs) == 0 {
		return true
	}
	if event.SchemaID == "" {
		return false
	}
	for _, id := range w.SchemaIDs {
		if id == event.SchemaID {
			return true
		}
	}
	return false
}

// FilterForEvent returns the webhooks that should fire for an event.
func FilterForEvent(webhooks []Webhook, event Event) []Webhook {
	var result []Webhook
	for _, w := range webhooks {
		if Matches(w, event) {
			result = append(result, w)
		}
	}
	return result
}

// NewCall builds the audit record for one dispatch attempt.
func NewCall(id string, w Webhook, event Event, payload string, status int, response string, executedAt time.Time) Call {
	return Call{
		ID:         id,
		WebhookID:  w.ID,
		EventType:  event.Type,
		Request:    payload,
		Response:   truncate(response, 1000),
		Status:     status,
		Success:    status >= 200 && status < 300,
		ExecutedAt: executedAt,
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// ValidateURL validates a webhook URL.
func ValidateURL(url string) (bool, string) {
	if url == "" {
		return false, "URL is required"
	}
	if len(url) < 8 {
		return false, "URL is too short"
	}
	if url[:8] != "https://" && url[:7] != "http://" {
		return false, "URL must start with https:// or http://"
	}
	return true, ""
}

// ValidateEvents validates a list of event types.
func ValidateEvents(events []EventType) (bool, string) {
	if len(events) == 0 {
		return false, "At least one event type is required"
	}
	validTypes := make(map[EventType]bool)
	for _, t := range AllEventTypes() {
		validTypes[t] = true
	}
	for _, e := range events {
		if !validTypes[e] {
			return false, "Invalid event type: " + string(e)
		}
	}
	return true, ""
}
