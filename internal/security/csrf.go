package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// CSRFHeader carries the CSRF token on cookie-authenticated writes
const CSRFHeader = "X-CSRF-Token"

// CSRF derives per-session tokens with HMAC-SHA256, so replicas need only
// share the secret.
type CSRF struct {
	secret []byte
}

// NewCSRF creates a CSRF token source
func NewCSRF(secret string) *CSRF {
	return &CSRF{secret: []byte(secret)}
}

// Token returns the CSRF token bound to sessionID
func (c *CSRF) Token(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Valid reports whether token belongs to sessionID
func (c *CSRF) Valid(sessionID, token string) bool {
	if sessionID == "" || token == "" {
		return false
	}
	return hmac.Equal([]byte(c.Token(sessionID)), []byte(token))
}
