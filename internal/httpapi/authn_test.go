package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"libris.org/internal/accounts"
	"libris.org/internal/auth"
)

func TestIsPublic(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodGet, "/healthz", true},
		{http.MethodGet, "/v1/info", true},
		{http.MethodGet, "/metrics", true},
		{http.MethodGet, "/v1/books", true},
		{http.MethodGet, "/v1/books/search", true},
		{http.MethodGet, "/v1/books/01ARZ3NDEKTSV4RRFFQ69G5FAV", true},
		{http.MethodPost, "/v1/accounts", true},
		{http.MethodPost, "/v1/accounts/login", true},
		{http.MethodOptions, "/v1/books", true},

		{http.MethodPost, "/v1/books", false},
		{http.MethodPut, "/v1/books/01ARZ3NDEKTSV4RRFFQ69G5FAV", false},
		{http.MethodPut, "/v1/books/01ARZ3NDEKTSV4RRFFQ69G5FAV/borrow", false},
		{http.MethodGet, "/v1/accounts", false},
		{http.MethodGet, "/v1/stream", false},
	}
	for _, tc := range cases {
		r, _ := http.NewRequest(tc.method, "http://x"+tc.path, nil)
		if got := isPublic(r); got != tc.want {
			t.Errorf("isPublic(%s %s) = %v, want %v", tc.method, tc.path, got, tc.want)
		}
	}
}

func TestExtractBearerToken(t *testing.T) {
	if tok, err := extractBearerToken("Bearer abc.def.ghi"); err != nil || tok != "abc.def.ghi" {
		t.Fatalf("got (%q, %v)", tok, err)
	}
	if tok, err := extractBearerToken("bearer abc"); err != nil || tok != "abc" {
		t.Fatalf("scheme should be case-insensitive, got (%q, %v)", tok, err)
	}
	for _, header := range []string{"", "Bearer ", "Basic abc", "abc"} {
		if _, err := extractBearerToken(header); err == nil {
			t.Errorf("extractBearerToken(%q) accepted", header)
		}
	}
}

// A token whose role claim no longer matches the stored account must be
// refused, even though its signature verifies.
func TestWithAuthRejectsStaleRoleClaim(t *testing.T) {
	api := newTestAPI(t)

	acct, err := api.accounts.Register(context.Background(), accounts.NewAccount{
		FullName: "Demoted Librarian",
		Email:    "demoted@example.com",
		Password: "s3cret-pass",
		Role:     auth.RoleUser,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	authn, err := auth.NewAuthenticator("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	token, _, err := authn.IssueToken(acct.ID, auth.RoleLibrarian)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	resp := api.post("/v1/books", sampleBook("9780441478125", "X"),
		map[string]string{"Authorization": "Bearer " + token})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestWithAuthRejectsUnknownSubject(t *testing.T) {
	api := newTestAPI(t)

	authn, err := auth.NewAuthenticator("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	token, _, err := authn.IssueToken("01ARZ3NDEKTSV4RRFFQ69G5FAV", auth.RoleLibrarian)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	resp := api.post("/v1/books", sampleBook("9780441478125", "X"),
		map[string]string{"Authorization": "Bearer " + token})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}
