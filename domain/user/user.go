// Package user provides value types and pure validation functions for
// user accounts and roles. This package has NO dependencies on I/O.
package user

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
)

// User represents an account that can hold the API (value type).
type User struct {
	ID           string
	Email        string // unique
	FirstName    string
	LastName     string
	PasswordHash []byte // bcrypt
	Roles        []string
	Scopes       []string
	APIKeys      []string // bcrypt hashes of issued keys
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role is a named bundle of scopes.
type Role struct {
	Name      string // unique
	Scopes    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveScopes returns the union of the user's own scopes and the
// scopes of all held roles, sorted and de-duplicated.
func EffectiveScopes(u User, roles []Role) []string {
	set := make(map[string]bool, len(u.Scopes))
	for _, s := range u.Scopes {
		set[s] = true
	}
	held := make(map[string]bool, len(u.Roles))
	for _, r := range u.Roles {
		held[r] = true
	}
	for _, role := range roles {
		if !held[role.Name] {
			continue
		}
		for _, s := range role.Scopes {
			set[s] = true
		}
	}

	scopes := make([]string, 0, len(set))
	for s := range set {
		scopes = append(scopes, s)
	}
	sort.Strings(scopes)
	return scopes
}

// FullName returns the user's display name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// GenerateAPIKey generates a random API key with the given prefix. The
// raw key is shown once; only its hash is stored on the user.
func GenerateAPIKey(prefix string) string {
	if prefix == "" {
		prefix = "sk_"
	}
	bytes := make([]byte, 24)
	rand.Read(bytes)
	return prefix + hex.EncodeToString(bytes)
}

// CreateRequest represents a user creation request (value type).
type CreateRequest struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	Roles     []string
	Scopes    []string
}

// ValidationResult carries field-level validation errors.
type ValidationResult struct {
	Valid  bool
	Errors map[string]string // field -> error message
}

// ValidateCreate validates a user creation request (pure function).
func ValidateCreate(req CreateRequest) ValidationResult {
	errors := make(map[string]string)

	if req.Email == "" {
		errors["email"] = "Email is required"
	} else if !isValidEmail(req.Email) {
		errors["email"] = "Invalid email format"
	}

	if req.Password == "" {
		errors["password"] = "Password is required"
	} else if len(req.Password) < 8 {
		errors["password"] = "Password must be at least 8 characters"
	} else if !isStrongPassword(req.Password) {
		errors["password"] = "Password must contain uppercase, lowercase, and number"
	}

	if req.FirstName == "" {
		errors["firstName"] = "First name is required"
	}

	return ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(strings.TrimSpace(email))
}

func isStrongPassword(password string) bool {
	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}
