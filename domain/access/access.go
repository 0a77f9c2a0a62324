// Package access provides pure scope-evaluation functions for the
// authorization gate. A scope is a capability token of the form
// "resource:action" optionally narrowed to "resource:action:resourceId".
package access

import "strings"

// Principal is the resolved identity attached to a request.
type Principal struct {
	UserID string
	Email  string
	Scopes []string // effective scopes: own scopes plus role scopes
}

// Options tunes scope evaluation for a single operation.
type Options struct {
	// DeriveAlternativeScopes allows a scope of the form
	// "<required>:<resourceId>" to authorize the operation when
	// resourceId matches one of the peeked argument values.
	DeriveAlternativeScopes bool

	// FieldsOrArgsToPeek names the operation arguments whose values may
	// satisfy a derived scope (e.g. "schemaId").
	FieldsOrArgsToPeek []string
}

// Args carries the operation's named argument values for peeking.
type Args map[string]string

// AdminScopes returns every static scope the admin surface guards
// with, one per resource and action. Derived (per-schema) scopes are
// not included; an admin holding the broad scope never needs them.
func AdminScopes() []string {
	resources := []string{"schema", "field", "document", "user", "role", "webhook", "webhook_call"}
	actions := []string{"create", "read", "update", "delete"}

	scopes := make([]string, 0, len(resources)*len(actions))
	for _, r := range resources {
		for _, a := range actions {
			scopes = append(scopes, "internal:"+r+":"+a)
		}
	}
	return scopes
}

// HasScope reports whether the literal scope is present.
func HasScope(scopes []string, required string) bool {
	for _, s := range scopes {
		if s == required {
			return true
		}
	}
	return false
}

// Authorized evaluates the required scope against a principal's scopes.
// With DeriveAlternativeScopes enabled, a narrowed scope such as
// "internal:schema:read:<id>" grants access when <id> equals the value
// of one of the peeked arguments.
func Authorized(p Principal, required string, opts Options, args Args) bool {
	if HasScope(p.Scopes, required) {
		return true
	}

	if !opts.DeriveAlternativeScopes {
		return false
	}

	prefix := required + ":"
	for _, s := range p.Scopes {
		if !strings.HasPrefix(s, prefix) {
			continue
		}
		resourceID := s[len(prefix):]
		if resourceID == "" {
			continue
		}
		for _, arg := range opts.FieldsOrArgsToPeek {
			if v, ok := args[arg]; ok && v == resourceID {
				return true
			}
		}
	}

	return false
}
