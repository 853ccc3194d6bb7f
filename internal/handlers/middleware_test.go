package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	env := newAPIEnv(t, envOptions{})

	rec := env.do(t, nil, http.MethodGet, "/api/tasks", nil)
	requireErrorCode(t, rec, http.StatusUnauthorized, CodeUnauthorized)

	rec = env.do(t, &client{session: "no-such-session"}, http.MethodGet, "/api/tasks", nil)
	requireErrorCode(t, rec, http.StatusUnauthorized, CodeUnauthorized)
}

func TestCSRFRequiredForCookieWrites(t *testing.T) {
	env := newAPIEnv(t, envOptions{})
	parent, _ := env.register(t, "pat@example.com", "Pat", "", "PARENT")

	noToken := &client{session: parent.session}
	rec := env.do(t, noToken, http.MethodPost, "/api/tags", map[string]string{"name": "Yard"})
	requireErrorCode(t, rec, http.StatusForbidden, CodeForbidden)

	wrongToken := &client{session: parent.session, csrf: strings.Repeat("0", 64)}
	rec = env.do(t, wrongToken, http.MethodPost, "/api/tags", map[string]string{"name": "Yard"})
	requireErrorCode(t, rec, http.StatusForbidden, CodeForbidden)

	// Reads need no token.
	rec = env.do(t, noToken, http.MethodGet, "/api/tags", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, parent, http.MethodPost, "/api/tags", map[string]string{"name": "Yard"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestUnknownRoutesAndIDs(t *testing.T) {
	env := newAPIEnv(t, envOptions{})
	parent, _ := env.register(t, "pat@example.com", "Pat", "", "PARENT")

	rec := env.do(t, parent, http.MethodGet, "/api/tasks/abc", nil)
	requireErrorCode(t, rec, http.StatusNotFound, CodeNotFound)

	rec = env.do(t, parent, http.MethodGet, "/api/tasks/999", nil)
	requireErrorCode(t, rec, http.StatusNotFound, CodeNotFound)

	rec = env.do(t, nil, http.MethodGet, "/api/nothing-here", nil)
	requireErrorCode(t, rec, http.StatusNotFound, CodeNotFound)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newAPIEnv(t, envOptions{})

	rec := env.do(t, nil, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]string
	env2 := decodeEnvelope(t, rec, &health)
	assert.True(t, env2.Success)
	assert.Equal(t, "ok", health["status"])

	rec = env.do(t, nil, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `chorechart_http_requests_total{method="GET",route="GET /api/health",status="200"} 1`)
}

func TestBearerTokenParsing(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer  abc ", want: "abc", ok: true},
		{header: "Basic abc", ok: false},
		{header: "Bearer", ok: false},
		{header: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, ok := bearerToken(req)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
