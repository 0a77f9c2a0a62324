package user

import (
	"strings"
	"testing"
)

func TestEffectiveScopes(t *testing.T) {
	u := User{
		Scopes: []string{"internal:schema:read", "internal:document:read"},
		Roles:  []string{"editor"},
	}
	roles := []Role{
		{Name: "editor", Scopes: []string{"internal:document:create", "internal:document:read"}},
		{Name: "admin", Scopes: []string{"internal:user:create"}}, // not held
	}

	scopes := EffectiveScopes(u, roles)

	want := []string{"internal:document:create", "internal:document:read", "internal:schema:read"}
	if len(scopes) != len(want) {
		t.Fatalf("scopes = %v, want %v", scopes, want)
	}
	for i := range want {
		if scopes[i] != want[i] {
			t.Errorf("scopes[%d] = %s, want %s", i, scopes[i], want[i])
		}
	}
}

func TestEffectiveScopes_NoRoles(t *testing.T) {
	u := User{Scopes: []string{"internal:schema:read"}}
	scopes := EffectiveScopes(u, nil)
	if len(scopes) != 1 || scopes[0] != "internal:schema:read" {
		t.Errorf("scopes = %v", scopes)
	}
}

func TestValidateCreate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequest
		valid   bool
		errKeys []string
	}{
		{
			name:  "valid",
			req:   CreateRequest{Email: "jo@example.com", FirstName: "Jo", Password: "Secret123"},
			valid: true,
		},
		{
			name:    "missing everything",
			req:     CreateRequest{},
			valid:   false,
			errKeys: []string{"email", "password", "firstName"},
		},
		{
			name:    "bad email",
			req:     CreateRequest{Email: "not-an-email", FirstName: "Jo", Password: "Secret123"},
			valid:   false,
			errKeys: []string{"email"},
		},
		{
			name:    "weak password",
			req:     CreateRequest{Email: "jo@example.com", FirstName: "Jo", Password: "alllowercase1"},
			valid:   false,
			errKeys: []string{"password"},
		},
		{
			name:    "short password",
			req:     CreateRequest{Email: "jo@example.com", FirstName: "Jo", Password: "Ab1"},
			valid:   false,
			errKeys: []string{"password"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateCreate(tt.req)
			if result.Valid != tt.valid {
				t.Errorf("Valid = %v, errors = %v", result.Valid, result.Errors)
			}
			for _, k := range tt.errKeys {
				if result.Errors[k] == "" {
					t.Errorf("expected error for %s", k)
				}
			}
		})
	}
}

func TestGenerateAPIKey(t *testing.T) {
	k1 := GenerateAPIKey("")
	k2 := GenerateAPIKey("")

	if !strings.HasPrefix(k1, "sk_") {
		t.Errorf("key %s missing sk_ prefix", k1)
	}
	if len(k1) != 3+48 {
		t.Errorf("key length = %d", len(k1))
	}
	if k1 == k2 {
		t.Error("keys should be unique")
	}

	if custom := GenerateAPIKey("ck_"); !strings.HasPrefix(custom, "ck_") {
		t.Errorf("key %s missing ck_ prefix", custom)
	}
}

func TestFullName(t *testing.T) {
	u := User{FirstName: "Jo", LastName: "Bloggs"}
	if u.FullName() != "Jo Bloggs" {
		t.Errorf("FullName = %q", u.FullName())
	}

	u = User{FirstName: "Jo"}
	if u.FullName() != "Jo" {
		t.Errorf("FullName = %q", u.FullName())
	}
}
