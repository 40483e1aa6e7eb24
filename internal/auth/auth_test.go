package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestAuthenticator(t *testing.T, ttl time.Duration) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator("test-secret", ttl)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return a
}

func TestIssueAndValidateToken(t *testing.T) {
	a := newTestAuthenticator(t, time.Hour)

	token, expiresAt, err := a.IssueToken("acct-42", RoleLibrarian)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	id, err := a.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if id.ID != "acct-42" {
		t.Fatalf("unexpected subject: %s", id.ID)
	}
	if id.Role != RoleLibrarian {
		t.Fatalf("unexpected role: %s", id.Role)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	a := newTestAuthenticator(t, time.Millisecond)

	token, _, err := a.IssueToken("acct-42", RoleUser)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := a.ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestForeignSignatureRejected(t *testing.T) {
	a := newTestAuthenticator(t, time.Hour)
	other, err := NewAuthenticator("different-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}

	token, _, err := other.IssueToken("acct-42", RoleUser)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := a.ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	a := newTestAuthenticator(t, time.Hour)
	for _, token := range []string{"", "   ", "not-a-token", "a.b.c"} {
		if _, err := a.ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestIssueTokenRejectsUnknownRole(t *testing.T) {
	a := newTestAuthenticator(t, time.Hour)
	if _, _, err := a.IssueToken("acct-42", "superuser"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := IdentityFromContext(ctx); ok {
		t.Fatal("expected no identity in fresh context")
	}

	ctx = ContextWithIdentity(ctx, Identity{ID: "acct-7", Role: RoleUser})
	id, ok := IdentityFromContext(ctx)
	if !ok || id.ID != "acct-7" || id.Role != RoleUser {
		t.Fatalf("unexpected identity: %+v ok=%v", id, ok)
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret-pw" {
		t.Fatal("hash equals plaintext")
	}
	if err := VerifyPassword(hash, "s3cret-pw"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch error")
	}
}
