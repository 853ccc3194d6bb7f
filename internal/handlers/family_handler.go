package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"chorechart/internal/service"
)

// FamilyHandler serves family and membership endpoints
type FamilyHandler struct {
	familyService *service.FamilyService
	logger        *zap.Logger
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(familyService *service.FamilyService, logger *zap.Logger) *FamilyHandler {
	return &FamilyHandler{familyService: familyService, logger: logger}
}

// GetFamily returns the caller's family
func (h *FamilyHandler) GetFamily(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	family, err := h.familyService.GetFamily(actor)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, family)
}

// ListMembers returns every member of the caller's family
func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	members, err := h.familyService.ListMembers(actor)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

// RegenerateCode issues a new family join code
func (h *FamilyHandler) RegenerateCode(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	family, err := h.familyService.RegenerateCode(actor)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, family)
}

// AddChild creates a child account inside the caller's family
func (h *FamilyHandler) AddChild(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	var in service.AddChildInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	member, err := h.familyService.AddChild(actor, in)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, member)
}

// RemoveMember removes another member from the family
func (h *FamilyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	userID, err := pathID(r, "userId")
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	if err := h.familyService.RemoveMember(actor, userID); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"removedUserId": userID})
}

// UpdatePreferences changes the caller's phone and notification channels
func (h *FamilyHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	var in service.PreferencesInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	user, err := h.familyService.UpdatePreferences(actor, in)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}
