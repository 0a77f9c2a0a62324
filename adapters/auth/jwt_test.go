package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stencilcms/stencil/adapters/auth"
	"github.com/stencilcms/stencil/ports"
)

func TestIssueAndVerify(t *testing.T) {
	svc := auth.NewTokenService("test-secret")

	token, err := svc.Issue(ports.Claims{UserID: "u1", Email: "jo@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %s is not a JWT", token)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "jo@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := auth.NewTokenService("secret-a").Issue(ports.Claims{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := auth.NewTokenService("secret-b").Verify(token); err == nil {
		t.Error("token signed with another secret should not verify")
	}
}

func TestVerify_Expired(t *testing.T) {
	svc := auth.NewTokenService("test-secret")

	token, err := svc.Issue(ports.Claims{UserID: "u1"}, -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := svc.Verify(token); err == nil {
		t.Error("expired token should not verify")
	}
}

func TestVerify_Garbage(t *testing.T) {
	svc := auth.NewTokenService("test-secret")
	if _, err := svc.Verify("not.a.token"); err == nil {
		t.Error("garbage should not verify")
	}
}

func TestRandomSecret(t *testing.T) {
	svc := auth.NewTokenService("")
	token, err := svc.Issue(ports.Claims{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Verify(token); err != nil {
		t.Errorf("Verify with generated secret: %v", err)
	}
}
