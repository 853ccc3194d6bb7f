package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"chorechart/internal/database"
	"chorechart/internal/metrics"
	"chorechart/internal/models"
	"chorechart/internal/repository"
	"chorechart/internal/validation"
)

// CreateTaskInput is a new task as submitted by a parent
type CreateTaskInput struct {
	Title             string  `json:"title" validate:"required,max=200"`
	Description       string  `json:"description" validate:"max=2000"`
	Points            int     `json:"points" validate:"gte=0,max=100000"`
	DueDate           string  `json:"dueDate"`
	DueDateOnly       bool    `json:"dueDateOnly"`
	AssignedTo        *int64  `json:"assignedTo"`
	IsBonusTask       bool    `json:"isBonusTask"`
	IsRecurring       bool    `json:"isRecurring"`
	RecurrencePattern string  `json:"recurrencePattern" validate:"recurrence"`
	TagIDs            []int64 `json:"tagIds"`
}

// UpdateTaskInput carries the fields to change; nil fields are left alone
type UpdateTaskInput struct {
	Title       *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Points      *int     `json:"points" validate:"omitempty,gte=0,max=100000"`
	DueDate     *string  `json:"dueDate"`
	DueDateOnly *bool    `json:"dueDateOnly"`
	TagIDs      *[]int64 `json:"tagIds"`
}

// TaskService owns the task lifecycle
type TaskService struct {
	db         *database.DB
	tasks      *repository.TaskRepository
	points     *repository.PointsRepository
	families   *repository.FamilyRepository
	tags       *repository.TagRepository
	recurrence *RecurrenceService
	notifier   Notifier
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewTaskService creates a task service
func NewTaskService(
	db *database.DB,
	tasks *repository.TaskRepository,
	points *repository.PointsRepository,
	families *repository.FamilyRepository,
	tags *repository.TagRepository,
	recurrence *RecurrenceService,
	notifier Notifier,
	logger *zap.Logger,
	m *metrics.Metrics,
) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
		db:         db,
		tasks:      tasks,
		points:     points,
		families:   families,
		tags:       tags,
		recurrence: recurrence,
		notifier:   notifier,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// ParseDueDate accepts a bare date (2006-01-02) or an RFC 3339 timestamp.
// An empty string means no due date.
func ParseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, validation.Invalid("dueDate", "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}

// Create adds a task to the actor's family
func (s *TaskService) Create(ctx context.Context, actor models.Actor, in CreateTaskInput) (*models.Task, error) {
	if !models.CanCreateTasks(actor.Role) {
		return nil, ErrForbidden
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	due, err := ParseDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}
	if in.IsRecurring && in.RecurrencePattern == "" {
		return nil, validation.Invalid("recurrencePattern", "is required for recurring tasks")
	}
	if !in.IsRecurring {
		in.RecurrencePattern = ""
	}

	task := &models.Task{
		FamilyID:          actor.FamilyID,
		Title:             in.Title,
		Description:       in.Description,
		Points:            in.Points,
		DueDate:           due,
		DueDateOnly:       in.DueDateOnly,
		CreatedBy:         actor.UserID,
		IsRecurring:       in.IsRecurring,
		RecurrencePattern: models.RecurrencePattern(in.RecurrencePattern),
		IsBonusTask:       in.IsBonusTask,
	}

	if in.IsBonusTask {
		task.Status = models.TaskAvailable
	} else {
		if in.AssignedTo == nil {
			return nil, validation.Invalid("assignedTo", "is required unless the task is a bonus task")
		}
		if err := s.requireMember(actor.FamilyID, *in.AssignedTo, "assignedTo"); err != nil {
			return nil, err
		}
		assignee := *in.AssignedTo
		task.AssignedTo = &assignee
		task.Status = models.TaskPending
	}

	tagIDs, err := s.checkTags(actor.FamilyID, in.TagIDs)
	if err != nil {
		return nil, err
	}

	err = s.db.WithTx(func(tx *database.Tx) error {
		tasks := s.tasks.WithTx(tx)
		if err := tasks.CreateTask(task); err != nil {
			return err
		}
		return tasks.SetTaskTags(task.ID, tagIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.metrics.TaskTransition("create")

	created, err := s.tasks.GetTask(actor.FamilyID, task.ID)
	if err != nil {
		return nil, err
	}

	if task.IsBonusTask {
		recipients, err := s.memberIDs(actor.FamilyID, actor.UserID, nil)
		if err != nil {
			s.logger.Warn("Failed to load bonus task recipients", zap.Int64("task_id", task.ID), zap.Error(err))
		}
		s.notify(ctx, models.NotifyBonusPosted, "New bonus task", fmt.Sprintf("%q is up for grabs (%d points)", task.Title, task.Points), task.ID, recipients...)
	} else if *task.AssignedTo != actor.UserID {
		s.notify(ctx, models.NotifyTaskAssigned, "New task assigned", fmt.Sprintf("You have been assigned %q", task.Title), task.ID, *task.AssignedTo)
	}
	return created, nil
}

// Get returns one task. Children only see their own tasks and open bonus tasks.
func (s *TaskService) Get(actor models.Actor, taskID int64) (*models.Task, error) {
	task, err := s.tasks.GetTask(actor.FamilyID, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || !visibleTo(actor, task) {
		return nil, ErrNotFound
	}
	return task, nil
}

func visibleTo(actor models.Actor, task *models.Task) bool {
	if actor.Role.IsParent() || task.IsAssignedTo(actor.UserID) {
		return true
	}
	return task.IsBonusTask && task.Status == models.TaskAvailable
}

// List returns the family's tasks as visible to the actor
func (s *TaskService) List(actor models.Actor, filter models.TaskFilter) ([]*models.Task, error) {
	var childID *int64
	if !actor.Role.IsParent() {
		id := actor.UserID
		childID = &id
	}
	return s.tasks.ListTasks(actor.FamilyID, filter, childID)
}

// Update edits a task that has not been verified yet
func (s *TaskService) Update(actor models.Actor, taskID int64, in UpdateTaskInput) (*models.Task, error) {
	if !models.CanCreateTasks(actor.Role) {
		return nil, ErrForbidden
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	task, err := s.tasks.GetTask(actor.FamilyID, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.Status == models.TaskVerified {
		return nil, ErrNotFound
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, validation.Invalid("title", "is required")
		}
		task.Title = title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Points != nil {
		task.Points = *in.Points
	}
	if in.DueDate != nil {
		due, err := ParseDueDate(*in.DueDate)
		if err != nil {
			return nil, err
		}
		task.DueDate = due
	}
	if in.DueDateOnly != nil {
		task.DueDateOnly = *in.DueDateOnly
	}

	var tagIDs []int64
	if in.TagIDs != nil {
		if tagIDs, err = s.checkTags(actor.FamilyID, *in.TagIDs); err != nil {
			return nil, err
		}
	}

	err = s.db.WithTx(func(tx *database.Tx) error {
		tasks := s.tasks.WithTx(tx)
		ok, err := tasks.UpdateTaskDetails(task)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		if in.TagIDs != nil {
			return tasks.SetTaskTags(task.ID, tagIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.TaskTransition("update")
	return s.tasks.GetTask(actor.FamilyID, taskID)
}

// Delete removes a task. Ledger entries that reference it are kept, and a
// deleted series root hands the series to its earliest remaining instance.
func (s *TaskService) Delete(actor models.Actor, taskID int64) error {
	if !models.CanCreateTasks(actor.Role) {
		return ErrForbidden
	}
	err := s.db.WithTx(func(tx *database.Tx) error {
		tasks := s.tasks.WithTx(tx)
		task, err := tasks.GetTask(actor.FamilyID, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return ErrNotFound
		}
		if task.IsRecurring {
			if err := tasks.PromoteSeriesRoot(task.ID); err != nil {
				return err
			}
		}
		ok, err := tasks.DeleteTask(actor.FamilyID, taskID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.TaskTransition("delete")
	return nil
}

// Claim takes an open bonus task. Only one concurrent claimer can succeed.
func (s *TaskService) Claim(ctx context.Context, actor models.Actor, taskID int64) (*models.Task, error) {
	ok, err := s.tasks.ClaimTask(actor.FamilyID, taskID, actor.UserID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.metrics.TaskTransition("claim")

	task, err := s.tasks.GetTask(actor.FamilyID, taskID)
	if err != nil || task == nil {
		return task, err
	}

	others, err := s.memberIDs(actor.FamilyID, actor.UserID, nil)
	if err != nil {
		s.logger.Warn("Failed to load claim recipients", zap.Int64("task_id", taskID), zap.Error(err))
	}
	if task.CreatedBy != actor.UserID && !containsID(others, task.CreatedBy) {
		others = append(others, task.CreatedBy)
	}
	s.notify(ctx, models.NotifyTaskClaimed, "Bonus task claimed", fmt.Sprintf("%q has been claimed and is no longer available", task.Title), task.ID, others...)
	return task, nil
}

// Assign hands an available or pending task to a family member
func (s *TaskService) Assign(ctx context.Context, actor models.Actor, taskID, assigneeID int64) (*models.Task, error) {
	if !models.CanCreateTasks(actor.Role) {
		return nil, ErrForbidden
	}
	if err := s.requireMember(actor.FamilyID, assigneeID, "assigneeId"); err != nil {
		return nil, err
	}

	ok, err := s.tasks.AssignTask(actor.FamilyID, taskID, assigneeID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.metrics.TaskTransition("assign")

	task, err := s.tasks.GetTask(actor.FamilyID, taskID)
	if err != nil || task == nil {
		return task, err
	}
	if assigneeID != actor.UserID {
		s.notify(ctx, models.NotifyTaskAssigned, "New task assigned", fmt.Sprintf("You have been assigned %q", task.Title), task.ID, assigneeID)
	}
	return task, nil
}

// Complete marks the actor's own task done. A parent's own task is verified
// and paid out immediately; a child's task waits for review.
func (s *TaskService) Complete(ctx context.Context, actor models.Actor, taskID int64) (*models.Task, error) {
	task, err := s.tasks.GetTask(actor.FamilyID, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || !task.IsAssignedTo(actor.UserID) || task.Status != models.TaskPending {
		return nil, ErrNotFound
	}

	now := s.now()
	if task.DueDateOnly && task.DueDate != nil && models.DateOnly(now).Before(models.DateOnly(*task.DueDate)) {
		return nil, validation.Invalid("dueDate", "task cannot be completed before its due date")
	}

	if actor.Role.IsParent() {
		err = s.db.WithTx(func(tx *database.Tx) error {
			ok, err := s.tasks.WithTx(tx).MarkSelfVerified(actor.FamilyID, taskID, actor.UserID, now)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotFound
			}
			return s.award(tx, task, actor.UserID, actor.UserID, now)
		})
		if err != nil {
			return nil, err
		}
		s.metrics.TaskTransition("self_verify")
		s.afterVerify(task)
		return s.tasks.GetTask(actor.FamilyID, taskID)
	}

	ok, err := s.tasks.MarkCompleted(actor.FamilyID, taskID, actor.UserID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.metrics.TaskTransition("complete")

	parents, err := s.memberIDs(actor.FamilyID, actor.UserID, models.CanReview)
	if err != nil {
		s.logger.Warn("Failed to load reviewers", zap.Int64("task_id", taskID), zap.Error(err))
	}
	s.notify(ctx, models.NotifyTaskCompleted, "Task ready for review", fmt.Sprintf("%q has been completed", task.Title), task.ID, parents...)
	return s.tasks.GetTask(actor.FamilyID, taskID)
}

// Verify approves a completed task and credits its points to the assignee
func (s *TaskService) Verify(ctx context.Context, actor models.Actor, taskID int64) (*models.Task, error) {
	if !models.CanReview(actor.Role) {
		return nil, ErrForbidden
	}

	task, err := s.tasks.GetTask(actor.FamilyID, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.Status != models.TaskCompleted || task.AssignedTo == nil {
		return nil, ErrNotFound
	}
	assignee := *task.AssignedTo

	now := s.now()
	err = s.db.WithTx(func(tx *database.Tx) error {
		tasks := s.tasks.WithTx(tx)
		ok, err := tasks.MarkVerified(actor.FamilyID, taskID, actor.UserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		// Points are read under the row lock; a VERIFIED task is no longer editable
		verified, err := tasks.GetTask(actor.FamilyID, taskID)
		if err != nil {
			return err
		}
		if verified == nil {
			return ErrNotFound
		}
		task = verified
		return s.award(tx, task, assignee, actor.UserID, now)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.TaskTransition("verify")

	s.notify(ctx, models.NotifyTaskVerified, "Task approved", fmt.Sprintf("%q was approved. You earned %d points!", task.Title, task.Points), task.ID, assignee)
	s.afterVerify(task)
	return s.tasks.GetTask(actor.FamilyID, taskID)
}

// Decline sends a completed task back to its assignee
func (s *TaskService) Decline(ctx context.Context, actor models.Actor, taskID int64, reason string) (*models.Task, error) {
	if !models.CanReview(actor.Role) {
		return nil, ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > 500 {
		return nil, validation.Invalid("reason", "must be at most 500 characters")
	}

	ok, err := s.tasks.MarkDeclined(actor.FamilyID, taskID, reason, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.metrics.TaskTransition("decline")

	task, err := s.tasks.GetTask(actor.FamilyID, taskID)
	if err != nil || task == nil {
		return task, err
	}
	if task.AssignedTo != nil {
		msg := fmt.Sprintf("%q needs another look", task.Title)
		if reason != "" {
			msg += ": " + reason
		}
		s.notify(ctx, models.NotifyTaskDeclined, "Task declined", msg, task.ID, *task.AssignedTo)
	}
	return task, nil
}

// GenerateMissing backfills recurring tasks for the actor's family
func (s *TaskService) GenerateMissing(actor models.Actor) (int, error) {
	if !models.CanCreateTasks(actor.Role) {
		return 0, ErrForbidden
	}
	return s.recurrence.SweepFamily(actor.FamilyID)
}

// award appends the ledger entry for a verified task inside tx
func (s *TaskService) award(tx *database.Tx, task *models.Task, userID, createdBy int64, now time.Time) error {
	if task.Points <= 0 {
		return nil
	}
	taskID := task.ID
	err := s.points.WithTx(tx).Append(&models.PointsEntry{
		UserID:    userID,
		FamilyID:  task.FamilyID,
		Points:    task.Points,
		Reason:    "Completed task: " + task.Title,
		TaskID:    &taskID,
		CreatedBy: createdBy,
		CreatedAt: now.UTC(),
	})
	if err != nil {
		return err
	}
	s.metrics.LedgerEntry("task")
	return nil
}

// afterVerify generates the next recurring instance. Errors are logged only.
func (s *TaskService) afterVerify(task *models.Task) {
	if s.recurrence == nil || !task.IsRecurring {
		return
	}
	if _, err := s.recurrence.GenerateNext(task); err != nil {
		s.logger.Error("Failed to generate next recurring task", zap.Int64("task_id", task.ID), zap.Error(err))
	}
}

func (s *TaskService) requireMember(familyID, userID int64, field string) error {
	member, err := s.families.GetMember(familyID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return validation.Invalid(field, "must be a member of your family")
	}
	return nil
}

func (s *TaskService) checkTags(familyID int64, ids []int64) ([]int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return ids, nil
	}
	n, err := s.tags.CountFamilyTags(familyID, ids)
	if err != nil {
		return nil, err
	}
	if n != len(ids) {
		return nil, validation.Invalid("tagIds", "contains unknown tags")
	}
	return ids, nil
}

// memberIDs lists family members other than exclude, optionally filtered by role
func (s *TaskService) memberIDs(familyID, exclude int64, keep func(models.Role) bool) ([]int64, error) {
	members, err := s.families.ListMembers(familyID)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, m := range members {
		if m.UserID == exclude || (keep != nil && !keep(m.Role)) {
			continue
		}
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (s *TaskService) notify(ctx context.Context, typ models.NotificationType, title, message string, taskID int64, recipients ...int64) {
	if s.notifier == nil || len(recipients) == 0 {
		return
	}
	s.notifier.Dispatch(ctx, NotificationEvent{
		Type:       typ,
		Title:      title,
		Message:    message,
		TaskID:     &taskID,
		Recipients: recipients,
	})
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
