package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports database liveness
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Router bundles the handlers and middleware served by the API
type Router struct {
	Middleware    *Middleware
	Auth          *AuthHandler
	Family        *FamilyHandler
	Tasks         *TaskHandler
	Points        *PointsHandler
	Notifications *NotificationHandler
	Tags          *TagHandler
	Assistant     *AssistantHandler

	DB       Pinger
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Handler builds the HTTP route table
func (rt *Router) Handler() http.Handler {
	mw := rt.Middleware
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", rt.health)
	if rt.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(rt.Gatherer, promhttp.HandlerOpts{}))
	}

	// Identity
	mux.HandleFunc("POST /api/auth/register", mw.RateLimit(rt.Auth.Register))
	mux.HandleFunc("POST /api/auth/login", mw.RateLimit(rt.Auth.Login))
	mux.HandleFunc("POST /api/auth/token", mw.RateLimit(rt.Auth.Token))
	mux.HandleFunc("POST /api/auth/logout", rt.Auth.Logout)
	mux.HandleFunc("GET /api/auth/me", mw.RequireUser(rt.Auth.Me))
	mux.HandleFunc("GET /api/auth/google/start", rt.Auth.StartOAuth)
	mux.HandleFunc("GET /api/auth/google/callback", rt.Auth.OAuthCallback)

	// Family
	mux.HandleFunc("GET /api/family", mw.RequireAuth(rt.Family.GetFamily))
	mux.HandleFunc("GET /api/family/members", mw.RequireAuth(rt.Family.ListMembers))
	mux.HandleFunc("POST /api/family/code/regenerate", mw.RequireAuth(rt.Family.RegenerateCode))
	mux.HandleFunc("POST /api/family/children", mw.RequireAuth(rt.Family.AddChild))
	mux.HandleFunc("DELETE /api/family/members/{userId}", mw.RequireAuth(rt.Family.RemoveMember))
	mux.HandleFunc("PUT /api/me/preferences", mw.RequireAuth(rt.Family.UpdatePreferences))

	// Tasks
	mux.HandleFunc("POST /api/tasks", mw.RequireAuth(rt.Tasks.Create))
	mux.HandleFunc("GET /api/tasks", mw.RequireAuth(rt.Tasks.List))
	mux.HandleFunc("GET /api/tasks/{id}", mw.RequireAuth(rt.Tasks.Get))
	mux.HandleFunc("PUT /api/tasks/{id}", mw.RequireAuth(rt.Tasks.Update))
	mux.HandleFunc("DELETE /api/tasks/{id}", mw.RequireAuth(rt.Tasks.Delete))
	mux.HandleFunc("POST /api/tasks/{id}/claim", mw.RequireAuth(rt.Tasks.Claim))
	mux.HandleFunc("POST /api/tasks/{id}/assign", mw.RequireAuth(rt.Tasks.Assign))
	mux.HandleFunc("POST /api/tasks/{id}/complete", mw.RequireAuth(rt.Tasks.Complete))
	mux.HandleFunc("POST /api/tasks/{id}/verify", mw.RequireAuth(rt.Tasks.Verify))
	mux.HandleFunc("POST /api/tasks/{id}/decline", mw.RequireAuth(rt.Tasks.Decline))
	mux.HandleFunc("POST /api/tasks/recurring/generate", mw.RequireAuth(rt.Tasks.GenerateRecurring))

	// Points
	mux.HandleFunc("POST /api/points/add", mw.RequireAuth(rt.Points.Add))
	mux.HandleFunc("POST /api/points/deduct", mw.RequireAuth(rt.Points.Deduct))
	mux.HandleFunc("GET /api/points/balance", mw.RequireAuth(rt.Points.Balance))
	mux.HandleFunc("GET /api/points/history", mw.RequireAuth(rt.Points.History))
	mux.HandleFunc("GET /api/points/family-history", mw.RequireAuth(rt.Points.FamilyHistory))
	mux.HandleFunc("GET /api/points/balances", mw.RequireAuth(rt.Points.Balances))

	// Notifications
	mux.HandleFunc("GET /api/notifications", mw.RequireAuth(rt.Notifications.List))
	mux.HandleFunc("GET /api/notifications/unread-count", mw.RequireAuth(rt.Notifications.UnreadCount))
	mux.HandleFunc("POST /api/notifications/{id}/read", mw.RequireAuth(rt.Notifications.MarkRead))
	mux.HandleFunc("POST /api/notifications/read-all", mw.RequireAuth(rt.Notifications.MarkAllRead))
	mux.HandleFunc("DELETE /api/notifications/{id}", mw.RequireAuth(rt.Notifications.Delete))

	// Tags
	mux.HandleFunc("GET /api/tags", mw.RequireAuth(rt.Tags.List))
	mux.HandleFunc("POST /api/tags", mw.RequireAuth(rt.Tags.Create))
	mux.HandleFunc("DELETE /api/tags/{id}", mw.RequireAuth(rt.Tags.Delete))

	// Assistant
	mux.HandleFunc("POST /api/ai/parse-tasks", mw.RequireAuth(rt.Assistant.ParseTasks))
	mux.HandleFunc("POST /api/ai/create-tasks", mw.RequireAuth(rt.Assistant.CreateTasks))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondAPIError(w, http.StatusNotFound, apiError{Code: CodeNotFound, Message: "not found"})
	})

	return mw.Logging(mux)
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	if rt.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.DB.PingContext(ctx); err != nil {
			rt.Logger.Error("Health check failed", zap.Error(err))
			respondAPIError(w, http.StatusServiceUnavailable, apiError{Code: CodeServerError, Message: "database unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
