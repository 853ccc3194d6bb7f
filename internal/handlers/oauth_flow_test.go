package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newFakeGoogle(t *testing.T) *OAuthProvider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "g-42", "email": "jo@example.com", "name": "Jo"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &OAuthProvider{
		Name: "google",
		Config: &oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			Endpoint: oauth2.Endpoint{
				AuthURL:   srv.URL + "/auth",
				TokenURL:  srv.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"openid", "email", "profile"},
		},
		UserInfoURL: srv.URL + "/userinfo",
	}
}

func cookieValue(rec *httptest.ResponseRecorder, name string) string {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestGoogleSignIn(t *testing.T) {
	google := newFakeGoogle(t)
	env := newAPIEnv(t, envOptions{google: google})

	rec := env.do(t, nil, http.MethodGet, "/api/auth/google/start", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(location.String(), google.Config.Endpoint.AuthURL))
	assert.Equal(t, "http://example.com/api/auth/google/callback", location.Query().Get("redirect_uri"))

	state := cookieValue(rec, "oauth_state")
	require.NotEmpty(t, state)
	assert.Equal(t, state, location.Query().Get("state"))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=abc&state="+url.QueryEscape(state), nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: state})
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/app", rec.Header().Get("Location"))

	session := sessionCookie(rec)
	require.NotEmpty(t, session)

	rec = env.do(t, &client{session: session}, http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me sessionBody
	decodeEnvelope(t, rec, &me)
	assert.Equal(t, "jo@example.com", me.User.Email)
	assert.Equal(t, "ADMIN_PARENT", me.Role)
}

func TestGoogleCallbackRejectsBadState(t *testing.T) {
	env := newAPIEnv(t, envOptions{google: newFakeGoogle(t)})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=abc&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "expected"})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	requireErrorCode(t, rec, http.StatusBadRequest, CodeValidation)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state=expected", nil)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	requireErrorCode(t, rec, http.StatusBadRequest, CodeValidation)
}

func TestGoogleNotConfigured(t *testing.T) {
	env := newAPIEnv(t, envOptions{})
	rec := env.do(t, nil, http.MethodGet, "/api/auth/google/start", nil)
	requireErrorCode(t, rec, http.StatusNotFound, CodeNotFound)
	assert.Nil(t, NewGoogleProvider("", "secret"))
}
