package shared

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const (
	// CSRFFormField is the form field name carrying the CSRF token.
	CSRFFormField = "csrf_token"
	// CSRFHeader carries the token on script requests.
	CSRFHeader = "X-CSRF-Token"
)

// CSRFManager issues and verifies CSRF tokens bound to a session key.
// Tokens are derived, so nothing is stored per session.
type CSRFManager struct {
	secret []byte
}

// NewCSRFManager returns a CSRFManager using the provided secret key.
func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// Token returns the token for the session key.
func (m *CSRFManager) Token(sessionKey string) (string, error) {
	if sessionKey == "" {
		return "", errors.New("session missing")
	}
	return m.generateToken(sessionKey), nil
}

// VerifyToken compares the supplied token with the session's token.
func (m *CSRFManager) VerifyToken(sessionKey, token string) error {
	if sessionKey == "" || token == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(m.generateToken(sessionKey)), []byte(token)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

func (m *CSRFManager) generateToken(sessionKey string) string {
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte("csrf|"))
	_, _ = mac.Write([]byte(sessionKey))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
