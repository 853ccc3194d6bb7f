package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"chorechart/internal/models"
	"chorechart/internal/service"
)

// PointsHandler serves the points ledger
type PointsHandler struct {
	pointsService *service.PointsService
	logger        *zap.Logger
}

// NewPointsHandler creates a new points handler
func NewPointsHandler(pointsService *service.PointsService, logger *zap.Logger) *PointsHandler {
	return &PointsHandler{pointsService: pointsService, logger: logger}
}

type adjustmentResponse struct {
	Entry   *models.PointsEntry `json:"entry"`
	Balance int                 `json:"balance"`
}

// Add credits bonus points to a member
func (h *PointsHandler) Add(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	var in service.PointsInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	entry, balance, err := h.pointsService.AddBonus(r.Context(), actor, in)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, adjustmentResponse{Entry: entry, Balance: balance})
}

// Deduct debits points from a member, never below zero
func (h *PointsHandler) Deduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	var in service.PointsInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	entry, balance, err := h.pointsService.Deduct(r.Context(), actor, in)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, adjustmentResponse{Entry: entry, Balance: balance})
}

// targetUser reads ?userId=, defaulting to the caller
func targetUser(r *http.Request, actor models.Actor) (int64, error) {
	id, err := queryID(r, "userId")
	if err != nil {
		return 0, err
	}
	if id == nil {
		return actor.UserID, nil
	}
	return *id, nil
}

// Balance returns a member's current balance
func (h *PointsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	userID, err := targetUser(r, actor)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	balance, err := h.pointsService.Balance(actor, userID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"userId": userID, "balance": int64(balance)})
}

// History returns a member's ledger with running balances
func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	userID, err := targetUser(r, actor)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	entries, err := h.pointsService.History(actor, userID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []models.PointsHistoryEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// FamilyHistory returns the whole family's ledger
func (h *PointsHandler) FamilyHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	entries, err := h.pointsService.FamilyHistory(actor)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []models.PointsHistoryEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// Balances returns every member's balance
func (h *PointsHandler) Balances(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	balances, err := h.pointsService.FamilyBalances(actor)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	if balances == nil {
		balances = []models.MemberBalance{}
	}
	respondJSON(w, http.StatusOK, balances)
}
