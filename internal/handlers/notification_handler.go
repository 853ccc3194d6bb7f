package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"chorechart/internal/models"
	"chorechart/internal/service"
	"chorechart/internal/validation"
)

// NotificationHandler serves the in-app notification inbox
type NotificationHandler struct {
	notificationService *service.NotificationService
	logger              *zap.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationService *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, logger: logger}
}

// List returns the caller's notifications. Supports ?unread=true and ?limit=.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()
	unreadOnly := q.Get("unread") == "true"
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondWithError(w, r, h.logger, validation.Invalid("limit", "must be a positive integer"))
			return
		}
		limit = n
	}

	list, err := h.notificationService.List(actor, unreadOnly, limit)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	respondJSON(w, http.StatusOK, list)
}

// UnreadCount returns the number of unread notifications
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	n, err := h.notificationService.UnreadCount(actor)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"count": n})
}

// MarkRead marks one notification read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	if err := h.notificationService.MarkRead(actor, id); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"id": id})
}

// MarkAllRead marks every notification read
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	n, err := h.notificationService.MarkAllRead(actor)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// Delete removes one notification
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	if err := h.notificationService.Delete(actor, id); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"id": id})
}
