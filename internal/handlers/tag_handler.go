package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"chorechart/internal/models"
	"chorechart/internal/service"
)

// TagHandler serves family task tags
type TagHandler struct {
	tagService *service.TagService
	logger     *zap.Logger
}

// NewTagHandler creates a new tag handler
func NewTagHandler(tagService *service.TagService, logger *zap.Logger) *TagHandler {
	return &TagHandler{tagService: tagService, logger: logger}
}

// List returns the family's tags
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	tags, err := h.tagService.List(actor)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	if tags == nil {
		tags = []models.TaskTag{}
	}
	respondJSON(w, http.StatusOK, tags)
}

// Create adds a tag
func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	var in service.CreateTagInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	tag, err := h.tagService.Create(actor, in)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, tag)
}

// Delete removes a tag and its task assignments
func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	if err := h.tagService.Delete(actor, id); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"id": id})
}
