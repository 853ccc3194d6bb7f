package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"chorechart/internal/service"
)

// AssistantHandler exposes the natural-language task assistant
type AssistantHandler struct {
	assistantService *service.AssistantService
	logger           *zap.Logger
}

// NewAssistantHandler creates a new assistant handler
func NewAssistantHandler(assistantService *service.AssistantService, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{assistantService: assistantService, logger: logger}
}

// ParseTasks turns free text into task drafts for review
func (h *AssistantHandler) ParseTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	result, err := h.assistantService.ParseTasks(r.Context(), actor, body.Text)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// CreateTasks saves reviewed drafts
func (h *AssistantHandler) CreateTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	var body struct {
		Tasks []service.TaskDraft `json:"tasks"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	created, err := h.assistantService.CreateFromDrafts(r.Context(), actor, body.Tasks)
	if err != nil {
		if len(created) > 0 {
			h.logger.Warn("Draft batch stopped early",
				zap.Int("created", len(created)),
				zap.Int("requested", len(body.Tasks)),
				zap.Error(err),
			)
		}
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}
