package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chorechart/internal/models"
	"chorechart/internal/security"
	"chorechart/internal/service"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService          *service.AuthService
	csrf                 *security.CSRF
	logger               *zap.Logger
	google               *OAuthProvider
	oauthRedirectBaseURL string
	postLoginURL         string
}

// NewAuthHandler creates a new auth handler. google may be nil when Google
// sign-in is not configured.
func NewAuthHandler(authService *service.AuthService, csrf *security.CSRF, google *OAuthProvider, oauthRedirectBaseURL, postLoginURL string, logger *zap.Logger) *AuthHandler {
	if postLoginURL == "" {
		postLoginURL = "/"
	}
	return &AuthHandler{
		authService:          authService,
		csrf:                 csrf,
		logger:               logger,
		google:               google,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
		postLoginURL:         postLoginURL,
	}
}

type sessionResponse struct {
	User      *models.User `json:"user"`
	FamilyID  int64        `json:"familyId,omitempty"`
	Role      models.Role  `json:"role,omitempty"`
	CSRFToken string       `json:"csrfToken,omitempty"`
	ExpiresAt *time.Time   `json:"expiresAt,omitempty"`
}

// Register creates an account and signs it in
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	user, member, err := h.authService.Register(r.Context(), in)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	session, err := h.authService.CreateSession(user.ID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	http.SetCookie(w, security.SessionCookie(r, session.ID, session.ExpiresAt))

	respondJSON(w, http.StatusCreated, sessionResponse{
		User:      user,
		FamilyID:  member.FamilyID,
		Role:      member.Role,
		CSRFToken: h.csrf.Token(session.ID),
		ExpiresAt: &session.ExpiresAt,
	})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles email and password sign-in
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	session, user, err := h.authService.Login(in.Email, in.Password)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	http.SetCookie(w, security.SessionCookie(r, session.ID, session.ExpiresAt))

	resp := sessionResponse{User: user, CSRFToken: h.csrf.Token(session.ID), ExpiresAt: &session.ExpiresAt}
	h.attachActor(&resp, user.ID)
	respondJSON(w, http.StatusOK, resp)
}

// Logout ends the cookie session, if any
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(security.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.authService.Logout(cookie.Value); err != nil {
			h.logger.Warn("Failed to delete session", zap.Error(err))
		}
	}
	http.SetCookie(w, security.ClearSessionCookie(r))
	respondJSON(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

// Token issues a bearer token for API clients
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	token, expiresAt, user, err := h.authService.IssueToken(in.Email, in.Password)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"tokenType": "Bearer",
		"expiresAt": expiresAt,
		"user":      user,
	})
}

// Me returns the signed-in user and their family role
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	resp := sessionResponse{User: user, CSRFToken: h.csrf.Token(sessionIDFromContext(r.Context()))}
	h.attachActor(&resp, user.ID)
	respondJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) attachActor(resp *sessionResponse, userID int64) {
	actor, err := h.authService.ResolveActor(userID)
	if err != nil {
		if !errors.Is(err, service.ErrNoFamily) {
			h.logger.Warn("Failed to resolve family membership", zap.Int64("user_id", userID), zap.Error(err))
		}
		return
	}
	resp.FamilyID = actor.FamilyID
	resp.Role = actor.Role
}
