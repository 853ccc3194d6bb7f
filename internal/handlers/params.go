package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"chorechart/internal/models"
	"chorechart/internal/service"
	"chorechart/internal/validation"
)

// pathID parses a numeric path wildcard. Malformed IDs name nothing, so they
// are reported as not found.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, service.ErrNotFound
	}
	return id, nil
}

// queryID parses an optional numeric query parameter
func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, validation.Invalid(name, "must be a positive integer")
	}
	return &id, nil
}

// actorOrError fetches the authenticated actor, writing an error response
// when the route was not wrapped by RequireAuth.
func actorOrError(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.Actor, bool) {
	actor, err := GetActorFromContext(r.Context())
	if err != nil {
		respondWithError(w, r, logger, service.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}
