// Package app contains the application services. Services orchestrate
// domain logic, stores, and the notification bus; they hold no business
// rules of their own beyond sequencing.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stencilcms/stencil/domain/webhook"
	"github.com/stencilcms/stencil/ports"
)

// Sentinel errors mapped to HTTP statuses at the web layer. They alias
// the store sentinels so errors.Is works across layers without
// translation.
var (
	ErrNotFound = ports.ErrNotFound
	ErrConflict = ports.ErrDuplicate
)

// ValidationError carries field-level validation failures.
type ValidationError struct {
	Errors map[string]string // field -> message
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for field, msg := range e.Errors {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Errors: map[string]string{field: msg}}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Notifier fans a content-change event out to external listeners
// (webhooks). Dispatch happens off the mutation path; Notify never
// blocks on delivery.
type Notifier interface {
	Notify(ctx context.Context, event webhook.Event)
}

// NoopNotifier discards events.
type NoopNotifier struct{}

// Notify does nothing.
func (NoopNotifier) Notify(ctx context.Context, event webhook.Event) {}

func wrapStoreErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
