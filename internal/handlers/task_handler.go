package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"chorechart/internal/models"
	"chorechart/internal/service"
	"chorechart/internal/validation"
)

// TaskHandler serves task CRUD and lifecycle transitions
type TaskHandler struct {
	taskService *service.TaskService
	logger      *zap.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{taskService: taskService, logger: logger}
}

// Create adds a task to the caller's family
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	var in service.CreateTaskInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	task, err := h.taskService.Create(r.Context(), actor, in)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, task)
}

// List returns the tasks visible to the caller. Supports ?status= and
// ?assignedTo= filters.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}

	var filter models.TaskFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseTaskStatus(raw)
		if err != nil {
			respondWithError(w, r, h.logger, validation.Invalid("status", err.Error()))
			return
		}
		filter.Status = status
	}
	assignedTo, err := queryID(r, "assignedTo")
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	filter.AssignedTo = assignedTo

	tasks, err := h.taskService.List(actor, filter)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	respondJSON(w, http.StatusOK, tasks)
}

// Get returns a single task
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	task, err := h.taskService.Get(actor, id)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// Update edits an unverified task
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	var in service.UpdateTaskInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	task, err := h.taskService.Update(actor, id, in)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// Delete removes a task
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	if err := h.taskService.Delete(actor, id); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deletedTaskId": id})
}

type transitionFunc func(ctx context.Context, actor models.Actor, taskID int64) (*models.Task, error)

func (h *TaskHandler) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorOrError(w, r, h.logger)
		if !ok {
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			respondWithError(w, r, h.logger, err)
			return
		}
		task, err := fn(r.Context(), actor, id)
		if err != nil {
			respondWithError(w, r, h.logger, err)
			return
		}
		respondJSON(w, http.StatusOK, task)
	}
}

// Claim takes an open bonus task
func (h *TaskHandler) Claim(w http.ResponseWriter, r *http.Request) {
	h.transition(h.taskService.Claim)(w, r)
}

// Complete marks the caller's pending task done
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(h.taskService.Complete)(w, r)
}

// Verify approves a completed task and awards its points
func (h *TaskHandler) Verify(w http.ResponseWriter, r *http.Request) {
	h.transition(h.taskService.Verify)(w, r)
}

// Assign hands a task to a family member
func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AssigneeID int64 `json:"assigneeId"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	if body.AssigneeID <= 0 {
		respondWithError(w, r, h.logger, validation.Invalid("assigneeId", "is required"))
		return
	}
	h.transition(func(ctx context.Context, actor models.Actor, taskID int64) (*models.Task, error) {
		return h.taskService.Assign(ctx, actor, taskID, body.AssigneeID)
	})(w, r)
}

// Decline sends a completed task back to its assignee
func (h *TaskHandler) Decline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &body); err != nil {
			respondWithError(w, r, h.logger, err)
			return
		}
	}
	h.transition(func(ctx context.Context, actor models.Actor, taskID int64) (*models.Task, error) {
		return h.taskService.Decline(ctx, actor, taskID, body.Reason)
	})(w, r)
}

// GenerateRecurring backfills missing recurring instances for the family
func (h *TaskHandler) GenerateRecurring(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrError(w, r, h.logger)
	if !ok {
		return
	}
	created, err := h.taskService.GenerateMissing(actor)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"created": created})
}
