package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"chorechart/internal/metrics"
	"chorechart/internal/models"
	"chorechart/internal/security"
	"chorechart/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	UserContextKey    ContextKey = "user"
	ActorContextKey   ContextKey = "actor"
	SessionContextKey ContextKey = "session"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService *service.AuthService
	csrf        *security.CSRF
	limiter     *security.RateLimiter
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(authService *service.AuthService, csrf *security.CSRF, limiter *security.RateLimiter, logger *zap.Logger, m *metrics.Metrics) *Middleware {
	return &Middleware{
		authService: authService,
		csrf:        csrf,
		limiter:     limiter,
		logger:      logger,
		metrics:     m,
	}
}

// RequireUser authenticates the request with either a bearer token or the
// session cookie. Cookie-authenticated writes must carry a CSRF token.
func (m *Middleware) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			user      *models.User
			sessionID string
			err       error
		)

		if token, ok := bearerToken(r); ok {
			user, err = m.authService.AuthenticateToken(token)
		} else {
			cookie, cookieErr := r.Cookie(security.SessionCookieName)
			if cookieErr != nil || cookie.Value == "" {
				respondWithError(w, r, m.logger, service.ErrUnauthorized)
				return
			}
			sessionID = cookie.Value
			user, err = m.authService.ValidateSession(sessionID)
			if err != nil {
				http.SetCookie(w, security.ClearSessionCookie(r))
			}
		}
		if err != nil {
			respondWithError(w, r, m.logger, err)
			return
		}

		if sessionID != "" && !isSafeMethod(r.Method) && !m.csrf.Valid(sessionID, r.Header.Get(security.CSRFHeader)) {
			respondAPIError(w, http.StatusForbidden, apiError{Code: CodeForbidden, Message: "invalid CSRF token"})
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		ctx = context.WithValue(ctx, SessionContextKey, sessionID)
		next(w, r.WithContext(ctx))
	}
}

// RequireAuth is RequireUser plus resolution of the caller's family role
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireUser(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		actor, err := m.authService.ResolveActor(user.ID)
		if err != nil {
			respondWithError(w, r, m.logger, err)
			return
		}
		ctx := context.WithValue(r.Context(), ActorContextKey, actor)
		next(w, r.WithContext(ctx))
	})
}

// RateLimit throttles credential endpoints per client IP
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.limiter != nil && !m.limiter.Allow(security.GetClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondAPIError(w, http.StatusTooManyRequests, apiError{Code: CodeRateLimited, Message: "too many requests, please try again later"})
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging logs each request and records its latency
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.metrics.ObserveHTTP(route, r.Method, rec.status, elapsed)

		if m.logger != nil {
			m.logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", elapsed),
				zap.String("remote_ip", security.GetClientIP(r)),
			)
		}
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetActorFromContext retrieves the caller's family role from the request context
func GetActorFromContext(ctx context.Context) (models.Actor, error) {
	actor, ok := ctx.Value(ActorContextKey).(models.Actor)
	if !ok {
		return models.Actor{}, errors.New("no actor in request context")
	}
	return actor, nil
}

func sessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(SessionContextKey).(string)
	return id
}
