package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chorechart/internal/database/dbtest"
	"chorechart/internal/metrics"
	"chorechart/internal/outbox"
	"chorechart/internal/repository"
	"chorechart/internal/security"
	"chorechart/internal/service"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	return f.reply, f.err
}

type apiEnv struct {
	handler   http.Handler
	completer *fakeCompleter
	auth      *AuthHandler
}

type envOptions struct {
	loginRate int
	google    *OAuthProvider
}

func newAPIEnv(t *testing.T, opts envOptions) *apiEnv {
	t.Helper()
	if opts.loginRate == 0 {
		opts.loginRate = 1000
	}

	db := dbtest.New(t)
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	users := repository.NewUserRepository(db)
	families := repository.NewFamilyRepository(db)
	tasks := repository.NewTaskRepository(db)
	points := repository.NewPointsRepository(db)
	tags := repository.NewTagRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	queue := outbox.NewMemoryQueue(16)
	t.Cleanup(func() { queue.Close() })

	notifications := service.NewNotificationService(notifRepo, users, queue, service.NotificationChannels{}, logger, m)
	tokens := security.NewTokenIssuer("test-secret", time.Hour)
	authService := service.NewAuthService(db, users, families, tokens, notifications, logger, time.Hour)
	recurrence := service.NewRecurrenceService(db, tasks, logger)
	taskService := service.NewTaskService(db, tasks, points, families, tags, recurrence, notifications, logger, m)
	completer := &fakeCompleter{}

	csrf := security.NewCSRF("csrf-secret")
	authHandler := NewAuthHandler(authService, csrf, opts.google, "", "/app", logger)
	router := &Router{
		Middleware:    NewMiddleware(authService, csrf, security.NewRateLimiter(opts.loginRate), logger, m),
		Auth:          authHandler,
		Family:        NewFamilyHandler(service.NewFamilyService(db, families, users, logger), logger),
		Tasks:         NewTaskHandler(taskService, logger),
		Points:        NewPointsHandler(service.NewPointsService(db, points, families, notifications, logger, m), logger),
		Notifications: NewNotificationHandler(notifications, logger),
		Tags:          NewTagHandler(service.NewTagService(tags), logger),
		Assistant:     NewAssistantHandler(service.NewAssistantService(completer, families, tags, taskService, logger, m), logger),
		DB:            db,
		Gatherer:      registry,
		Logger:        logger,
	}

	return &apiEnv{handler: router.Handler(), completer: completer, auth: authHandler}
}

// client carries one caller's credentials
type client struct {
	session string
	csrf    string
	bearer  string
}

func (e *apiEnv) do(t *testing.T, c *client, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c != nil {
		if c.session != "" {
			req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: c.session})
		}
		if c.csrf != "" {
			req.Header.Set(security.CSRFHeader, c.csrf)
		}
		if c.bearer != "" {
			req.Header.Set("Authorization", "Bearer "+c.bearer)
		}
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func requireErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec, nil)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	require.Equal(t, code, env.Error.Code)
}

func sessionCookie(rec *httptest.ResponseRecorder) string {
	for _, c := range rec.Result().Cookies() {
		if c.Name == security.SessionCookieName && c.MaxAge >= 0 {
			return c.Value
		}
	}
	return ""
}

type sessionBody struct {
	User struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	FamilyID  int64  `json:"familyId"`
	Role      string `json:"role"`
	CSRFToken string `json:"csrfToken"`
}

// register signs up an account and returns its cookie client
func (e *apiEnv) register(t *testing.T, email, name, familyCode, accountType string) (*client, sessionBody) {
	t.Helper()
	rec := e.do(t, nil, http.MethodPost, "/api/auth/register", map[string]string{
		"email":       email,
		"password":    "password123",
		"name":        name,
		"familyCode":  familyCode,
		"accountType": accountType,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body sessionBody
	decodeEnvelope(t, rec, &body)
	c := &client{session: sessionCookie(rec), csrf: body.CSRFToken}
	require.NotEmpty(t, c.session)
	require.NotEmpty(t, c.csrf)
	return c, body
}

type familyMembers struct {
	parent   *client
	child    *client
	childID  int64
	parentID int64
}

// newFamily registers a parent and a child who joins with the family code
func (e *apiEnv) newFamily(t *testing.T) familyMembers {
	t.Helper()
	parent, parentBody := e.register(t, "pat@example.com", "Pat", "", "PARENT")

	rec := e.do(t, parent, http.MethodGet, "/api/family", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var family struct {
		FamilyCode string `json:"familyCode"`
	}
	decodeEnvelope(t, rec, &family)

	child, childBody := e.register(t, "kim@example.com", "Kim", family.FamilyCode, "CHILD")
	return familyMembers{parent: parent, child: child, parentID: parentBody.User.ID, childID: childBody.User.ID}
}
