package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndMe(t *testing.T) {
	env := newAPIEnv(t, envOptions{})

	parent, body := env.register(t, "pat@example.com", "Pat", "", "PARENT")
	assert.Equal(t, "ADMIN_PARENT", body.Role)
	assert.NotZero(t, body.FamilyID)

	rec := env.do(t, parent, http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me sessionBody
	decodeEnvelope(t, rec, &me)
	assert.Equal(t, "pat@example.com", me.User.Email)
	assert.Equal(t, body.FamilyID, me.FamilyID)
	assert.Equal(t, body.CSRFToken, me.CSRFToken)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRegisterRejections(t *testing.T) {
	env := newAPIEnv(t, envOptions{})
	env.register(t, "pat@example.com", "Pat", "", "PARENT")

	tests := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{
			name:   "duplicate email",
			body:   map[string]string{"email": "pat@example.com", "password": "password123", "name": "Pat", "accountType": "PARENT"},
			status: http.StatusConflict,
			code:   CodeConflict,
		},
		{
			name:   "child without code",
			body:   map[string]string{"email": "kid@example.com", "password": "password123", "name": "Kid", "accountType": "CHILD"},
			status: http.StatusBadRequest,
			code:   CodeValidation,
		},
		{
			name:   "unknown family code",
			body:   map[string]string{"email": "kid@example.com", "password": "password123", "name": "Kid", "familyCode": "NOPE-NOPE-00", "accountType": "CHILD"},
			status: http.StatusBadRequest,
			code:   CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, nil, http.MethodPost, "/api/auth/register", tt.body)
			requireErrorCode(t, rec, tt.status, tt.code)
		})
	}
}

func TestRegisterMalformedJSON(t *testing.T) {
	env := newAPIEnv(t, envOptions{})
	rec := env.do(t, nil, http.MethodPost, "/api/auth/register", "not an object")
	requireErrorCode(t, rec, http.StatusBadRequest, CodeValidation)
}

func TestLoginAndLogout(t *testing.T) {
	env := newAPIEnv(t, envOptions{})
	env.register(t, "pat@example.com", "Pat", "", "PARENT")

	rec := env.do(t, nil, http.MethodPost, "/api/auth/login", map[string]string{"email": "pat@example.com", "password": "wrong-password"})
	requireErrorCode(t, rec, http.StatusUnauthorized, CodeUnauthorized)

	rec = env.do(t, nil, http.MethodPost, "/api/auth/login", map[string]string{"email": "PAT@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body sessionBody
	decodeEnvelope(t, rec, &body)
	assert.Equal(t, "ADMIN_PARENT", body.Role)
	c := &client{session: sessionCookie(rec), csrf: body.CSRFToken}

	rec = env.do(t, c, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, c, http.MethodGet, "/api/auth/me", nil)
	requireErrorCode(t, rec, http.StatusUnauthorized, CodeUnauthorized)
}

func TestBearerToken(t *testing.T) {
	env := newAPIEnv(t, envOptions{})
	env.register(t, "pat@example.com", "Pat", "", "PARENT")

	rec := env.do(t, nil, http.MethodPost, "/api/auth/token", map[string]string{"email": "pat@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok struct {
		Token     string `json:"token"`
		TokenType string `json:"tokenType"`
	}
	decodeEnvelope(t, rec, &tok)
	require.NotEmpty(t, tok.Token)
	assert.Equal(t, "Bearer", tok.TokenType)

	// Bearer callers are not subject to CSRF checks.
	rec = env.do(t, &client{bearer: tok.Token}, http.MethodPost, "/api/tags", map[string]string{"name": "Kitchen"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, &client{bearer: "garbage"}, http.MethodGet, "/api/tags", nil)
	requireErrorCode(t, rec, http.StatusUnauthorized, CodeUnauthorized)
}

func TestLoginRateLimited(t *testing.T) {
	env := newAPIEnv(t, envOptions{loginRate: 2})

	creds := map[string]string{"email": "nobody@example.com", "password": "password123"}
	for i := 0; i < 2; i++ {
		rec := env.do(t, nil, http.MethodPost, "/api/auth/login", creds)
		requireErrorCode(t, rec, http.StatusUnauthorized, CodeUnauthorized)
	}

	rec := env.do(t, nil, http.MethodPost, "/api/auth/login", creds)
	requireErrorCode(t, rec, http.StatusTooManyRequests, CodeRateLimited)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
