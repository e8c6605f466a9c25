package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestClient(serverURL string) *Client {
	c := NewClient(Config{
		Domain:       "test.auth0.com",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})
	c.SetBaseURL(serverURL)
	return c
}

func serveToken(w http.ResponseWriter, expiresIn int64) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "mgmt-token",
		"token_type":   "Bearer",
		"expires_in":   expiresIn,
	})
}

func TestAcquireSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("invalid body: %v", err)
		}
		if body["grant_type"] != "client_credentials" {
			t.Fatalf("expected client_credentials grant, got %q", body["grant_type"])
		}
		serveToken(w, 3600)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	cred, err := c.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if cred.AccessToken != "mgmt-token" || cred.TokenType != "Bearer" {
		t.Fatalf("unexpected credential %+v", cred)
	}
	if cred.ExpiresAt.IsZero() {
		t.Fatalf("expected expiry from expires_in")
	}
}

func TestAcquireFailureCarriesProviderMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "access_denied", "error_description": "bad client secret"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Acquire(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "bad client secret") {
		t.Fatalf("expected provider message in error, got %q", got)
	}
}

func TestEnsureCredentialCaches(t *testing.T) {
	var acquisitions int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&acquisitions, 1)
		serveToken(w, 3600)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := c.EnsureCredential(context.Background()); err != nil {
			t.Fatalf("EnsureCredential: %v", err)
		}
	}
	if n := atomic.LoadInt32(&acquisitions); n != 1 {
		t.Fatalf("expected 1 token exchange, got %d", n)
	}
}

func TestCreateUserSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			serveToken(w, 3600)
		case "/api/v2/users":
			if got := r.Header.Get("Authorization"); got != "Bearer mgmt-token" {
				t.Fatalf("unexpected auth header %q", got)
			}
			var payload CreateUserPayload
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("invalid payload: %v", err)
			}
			if !payload.EmailVerified || !payload.VerifyEmail {
				t.Fatalf("expected verified flags set, got %+v", payload)
			}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(User{UserID: "auth0|123", Email: payload.Email})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	u, err := c.CreateUser(context.Background(), CreateUserPayload{
		Email:         "a@b.com",
		Connection:    "Username-Password-Authentication",
		Password:      "random",
		EmailVerified: true,
		VerifyEmail:   true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.UserID != "auth0|123" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestSetPasswordRetriesOnceAfterUnauthorized(t *testing.T) {
	var patches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/oauth/token":
			serveToken(w, 3600)
		case r.Method == http.MethodPatch:
			if atomic.AddInt32(&patches, 1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]any{"user_id": "auth0|123"})
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if err := c.SetPassword(context.Background(), "auth0|123", "new-password"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if n := atomic.LoadInt32(&patches); n != 2 {
		t.Fatalf("expected one retry after 401, got %d calls", n)
	}
}

func TestSetPasswordSurfacesProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			serveToken(w, 3600)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "PasswordStrengthError"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.SetPassword(context.Background(), "auth0|123", "weak")
	if err == nil || !strings.Contains(err.Error(), "PasswordStrengthError") {
		t.Fatalf("expected provider message, got %v", err)
	}
}

func TestFindUserByEmailFiltersExactMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			serveToken(w, 3600)
			return
		}
		// The provider matches partially; return neighbors too.
		_ = json.NewEncoder(w).Encode([]User{
			{UserID: "auth0|1", Email: "ana@b.com"},
			{UserID: "auth0|2", Email: "a@b.com"},
			{UserID: "auth0|3", Email: "a@b.com.mx"},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	u, err := c.FindUserByEmail(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if u.UserID != "auth0|2" {
		t.Fatalf("expected exact match auth0|2, got %+v", u)
	}

	if _, err := c.FindUserByEmail(context.Background(), "missing@b.com"); err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
