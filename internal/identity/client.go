package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrAuthFailure means the management credential could not be obtained.
	ErrAuthFailure = errors.New("identity: management token acquisition failed")
	// ErrUserNotFound means no account matched the email exactly.
	ErrUserNotFound = errors.New("identity: user not found")
)

// Credential is the short-lived bearer credential for the management API.
// It is held in memory only and must never be logged.
type Credential struct {
	AccessToken string
	TokenType   string
	AcquiredAt  time.Time
	ExpiresAt   time.Time
}

func (c Credential) valid(now time.Time) bool {
	if c.AccessToken == "" {
		return false
	}
	if c.ExpiresAt.IsZero() {
		// Unknown lifetime; keep using it until a 401 forces re-acquisition.
		return true
	}
	// Small skew so we do not hand out a credential about to lapse.
	return now.Add(30 * time.Second).Before(c.ExpiresAt)
}

// UserMetadata is the free-form profile block the provider stores per user.
type UserMetadata struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// User is the provider's representation of a created account.
type User struct {
	UserID       string       `json:"user_id"`
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// CreateUserPayload is the create-user request body.
type CreateUserPayload struct {
	Email         string       `json:"email"`
	Connection    string       `json:"connection"`
	Password      string       `json:"password"`
	EmailVerified bool         `json:"email_verified"`
	VerifyEmail   bool         `json:"verify_email"`
	UserMetadata  UserMetadata `json:"user_metadata,omitempty"`
}

// Config holds everything needed to talk to the provider's management API.
type Config struct {
	Domain       string // e.g. "acme.auth0.com"
	ClientID     string
	ClientSecret string
	Audience     string
}

// Client talks to the identity provider's management API. It holds at most
// one credential at a time; callers get on-demand re-acquisition when a call
// comes back 401. Safe for concurrent use.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	audience     string
	httpClient   *http.Client

	mu   sync.Mutex
	cred Credential
}

func NewClient(cfg Config) *Client {
	audience := cfg.Audience
	if audience == "" {
		audience = "https://" + cfg.Domain + "/api/v2/"
	}
	return &Client{
		baseURL:      "https://" + strings.TrimSuffix(cfg.Domain, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		audience:     audience,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

// SetHTTPClient overrides the underlying HTTP client. Tests point it at a
// local server via SetBaseURL.
func (c *Client) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		c.httpClient = hc
	}
}

// SetBaseURL overrides the provider base URL (scheme included).
func (c *Client) SetBaseURL(base string) {
	if strings.TrimSpace(base) != "" {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// Acquire performs the client-credentials exchange and replaces the cached
// credential. No retry is performed; retry policy belongs to the caller.
func (c *Client) Acquire(ctx context.Context) (Credential, error) {
	body := map[string]string{
		"grant_type":    "client_credentials",
		"audience":      c.audience,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	}
	b, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", bytes.NewReader(b))
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return Credential{}, fmt.Errorf("%w: %s", ErrAuthFailure, providerMessage(raw, resp.StatusCode))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Credential{}, fmt.Errorf("%w: invalid token response: %v", ErrAuthFailure, err)
	}
	if out.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: token response missing access_token", ErrAuthFailure)
	}

	now := time.Now().UTC()
	cred := Credential{
		AccessToken: out.AccessToken,
		TokenType:   out.TokenType,
		AcquiredAt:  now,
	}
	if cred.TokenType == "" {
		cred.TokenType = "Bearer"
	}
	if out.ExpiresIn > 0 {
		cred.ExpiresAt = now.Add(time.Duration(out.ExpiresIn) * time.Second)
	} else if exp := tokenExpiry(out.AccessToken); !exp.IsZero() {
		cred.ExpiresAt = exp
	}

	c.mu.Lock()
	c.cred = cred
	c.mu.Unlock()

	return cred, nil
}

// tokenExpiry reads the exp claim out of a management JWT without verifying
// it. Only used when the token endpoint omits expires_in.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// EnsureCredential returns the cached credential, acquiring a fresh one when
// none is held or the held one has lapsed. Concurrent re-acquisitions race
// benignly: a stale credential just costs one more failed call.
func (c *Client) EnsureCredential(ctx context.Context) (Credential, error) {
	c.mu.Lock()
	cred := c.cred
	c.mu.Unlock()
	if cred.valid(time.Now().UTC()) {
		return cred, nil
	}
	return c.Acquire(ctx)
}

// Invalidate drops the cached credential so the next call re-acquires.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.cred = Credential{}
	c.mu.Unlock()
}

// CreateUser creates an account and returns the provider's representation.
func (c *Client) CreateUser(ctx context.Context, payload CreateUserPayload) (*User, error) {
	raw, err := c.doAuthenticated(ctx, http.MethodPost, "/api/v2/users", payload, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("identity: invalid create-user response: %w", err)
	}
	return &u, nil
}

// SetPassword sets a new password on an existing account.
func (c *Client) SetPassword(ctx context.Context, userID, password string) error {
	path := "/api/v2/users/" + url.PathEscape(userID)
	_, err := c.doAuthenticated(ctx, http.MethodPatch, path, map[string]string{"password": password}, http.StatusOK)
	return err
}

// FindUserByEmail looks an account up by email. The provider only supports
// partial matching on the query, so the result set is filtered here for
// exact equality.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	path := "/api/v2/users?q=" + url.QueryEscape("email="+email)
	raw, err := c.doAuthenticated(ctx, http.MethodGet, path, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	var users []User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("identity: invalid user search response: %w", err)
	}
	var match *User
	for i := range users {
		if users[i].Email == email {
			match = &users[i]
		}
	}
	if match == nil {
		return nil, ErrUserNotFound
	}
	return match, nil
}

// doAuthenticated issues one management API call with the current credential.
// A 401 drops the credential, re-acquires once and retries the call once.
func (c *Client) doAuthenticated(ctx context.Context, method, path string, body any, wantStatus int) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		cred, err := c.EnsureCredential(ctx)
		if err != nil {
			return nil, err
		}

		var reader io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			if err != nil {
				return nil, err
			}
			reader = bytes.NewReader(b)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", cred.TokenType+" "+cred.AccessToken)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("identity: %s %s: %w", method, path, err)
		}
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			c.Invalidate()
			continue
		}
		if resp.StatusCode != wantStatus {
			return nil, fmt.Errorf("identity: %s %s: %s", method, path, providerMessage(raw, resp.StatusCode))
		}
		return raw, nil
	}
}

// providerMessage pulls the human-readable message out of a provider error
// body, falling back to the status code.
func providerMessage(raw []byte, status int) string {
	var body struct {
		Message          string `json:"message"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		switch {
		case body.Message != "":
			return body.Message
		case body.ErrorDescription != "":
			return body.ErrorDescription
		case body.Error != "":
			return body.Error
		}
	}
	return fmt.Sprintf("status=%d", status)
}
