package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sunlease/portal/internal/identity"
)

// HTTPBackend talks to the authentication REST API.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend builds a client for the API rooted at baseURL. A nil client
// gets a default with a ten second timeout.
func NewHTTPBackend(baseURL string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPBackend{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type failureBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

type verifyBody struct {
	User *identity.Identity `json:"user"`
}

// Login submits credentials.
func (b *HTTPBackend) Login(ctx context.Context, creds Credentials) (LoginResponse, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return LoginResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/auth/login", bytes.NewReader(payload))
	if err != nil {
		return LoginResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := b.client.Do(req)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("session: login request: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
		var out LoginResponse
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			return LoginResponse{}, fmt.Errorf("session: decode login: %w", err)
		}
		return out, nil
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusBadRequest:
		return LoginResponse{}, &LoginError{Message: failureMessage(res.Body)}
	default:
		return LoginResponse{}, fmt.Errorf("session: login status %d", res.StatusCode)
	}
}

// Verify resolves the identity behind token.
func (b *HTTPBackend) Verify(ctx context.Context, token string) (*identity.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/auth/verify", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session: verify request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		var out verifyBody
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("session: decode verify: %w", err)
		}
		if err := out.User.Validate(); err != nil {
			return nil, err
		}
		return out.User, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, ErrUnauthenticated
	default:
		return nil, fmt.Errorf("session: verify status %d", res.StatusCode)
	}
}

// Logout revokes token on the backend.
func (b *HTTPBackend) Logout(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/auth/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("session: logout request: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode >= 300 {
		return fmt.Errorf("session: logout status %d", res.StatusCode)
	}
	return nil
}

func failureMessage(body io.Reader) string {
	var f failureBody
	if err := json.NewDecoder(body).Decode(&f); err != nil {
		return defaultLoginFailure
	}
	if msg := strings.TrimSpace(f.Message); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(f.Detail); msg != "" {
		return msg
	}
	return defaultLoginFailure
}

var _ Backend = (*HTTPBackend)(nil)
