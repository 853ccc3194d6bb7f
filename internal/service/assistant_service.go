package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"chorechart/internal/llm"
	"chorechart/internal/metrics"
	"chorechart/internal/models"
	"chorechart/internal/repository"
	"chorechart/internal/validation"
)

const (
	maxAssistantInput = 2000
	maxDrafts         = 20
	// unknownAssigneePenalty scales confidence down when a draft names
	// someone who is not in the family.
	unknownAssigneePenalty = 0.5
)

// TaskDraft is a task proposed by the assistant and not yet saved
type TaskDraft struct {
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	Points            int     `json:"points"`
	AssigneeID        *int64  `json:"assigneeId,omitempty"`
	DueDate           string  `json:"dueDate,omitempty"`
	DueDateOnly       bool    `json:"dueDateOnly"`
	IsBonusTask       bool    `json:"isBonusTask"`
	IsRecurring       bool    `json:"isRecurring"`
	RecurrencePattern string  `json:"recurrencePattern,omitempty"`
	TagIDs            []int64 `json:"tagIds"`
}

// ParseResult is the assistant's reading of a free-text request
type ParseResult struct {
	Tasks         []TaskDraft `json:"tasks"`
	Confidence    float64     `json:"confidence"`
	Clarification string      `json:"clarification,omitempty"`
}

// AssistantService turns natural language into task drafts
type AssistantService struct {
	llm      llm.Completer
	families *repository.FamilyRepository
	tags     *repository.TagRepository
	tasks    *TaskService
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewAssistantService creates an assistant service
func NewAssistantService(
	completer llm.Completer,
	families *repository.FamilyRepository,
	tags *repository.TagRepository,
	tasks *TaskService,
	logger *zap.Logger,
	m *metrics.Metrics,
) *AssistantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssistantService{
		llm:      completer,
		families: families,
		tags:     tags,
		tasks:    tasks,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

const assistantSystemPrompt = `You turn a parent's request into chores for a family task tracker.
Reply with a single JSON object:
{"tasks":[{"title":string,"description":string,"points":int,"assigneeId":int|null,
"dueDate":"YYYY-MM-DD"|null,"dueDateOnly":bool,"isBonusTask":bool,"isRecurring":bool,
"recurrencePattern":"DAILY"|"WEEKLY"|"MONTHLY"|null,"tagIds":[int]}],
"confidence":number between 0 and 1,"clarification":string|null}
Only use assigneeId and tagIds values from the context. Bonus tasks have no assignee.
Resolve relative dates against today. Ask a clarification question when the request is ambiguous.`

type promptMember struct {
	ID   int64       `json:"id"`
	Name string      `json:"name"`
	Role models.Role `json:"role"`
}

type promptTag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type promptContext struct {
	Today   string         `json:"today"`
	Members []promptMember `json:"members"`
	Tags    []promptTag    `json:"tags"`
	Request string         `json:"request"`
}

// ParseTasks asks the model for task drafts. A single attempt is made; any
// model or decoding failure is reported as ErrAIUnavailable.
func (s *AssistantService) ParseTasks(ctx context.Context, actor models.Actor, text string) (*ParseResult, error) {
	if !models.CanCreateTasks(actor.Role) {
		return nil, ErrForbidden
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validation.Invalid("text", "is required")
	}
	if len(text) > maxAssistantInput {
		return nil, validation.Invalid("text", fmt.Sprintf("must be at most %d characters", maxAssistantInput))
	}

	members, err := s.families.ListMembers(actor.FamilyID)
	if err != nil {
		return nil, err
	}
	tags, err := s.tags.ListTags(actor.FamilyID)
	if err != nil {
		return nil, err
	}

	pc := promptContext{
		Today:   models.DateOnly(s.now()).Format("2006-01-02"),
		Members: make([]promptMember, 0, len(members)),
		Tags:    make([]promptTag, 0, len(tags)),
		Request: text,
	}
	for _, m := range members {
		pc.Members = append(pc.Members, promptMember{ID: m.UserID, Name: m.Name, Role: m.Role})
	}
	for _, t := range tags {
		pc.Tags = append(pc.Tags, promptTag{ID: t.ID, Name: t.Name})
	}
	prompt, err := json.Marshal(pc)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	raw, err := s.llm.Complete(ctx, assistantSystemPrompt, string(prompt))
	if err != nil {
		s.metrics.LLMRequest("error")
		s.logger.Warn("Task assistant request failed", zap.Int64("family_id", actor.FamilyID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}

	var result ParseResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		s.metrics.LLMRequest("invalid")
		s.logger.Warn("Task assistant returned invalid JSON", zap.Int64("family_id", actor.FamilyID), zap.Error(err))
		return nil, fmt.Errorf("%w: invalid model response", ErrAIUnavailable)
	}
	s.metrics.LLMRequest("ok")

	memberIDs := make(map[int64]bool, len(members))
	for _, m := range members {
		memberIDs[m.UserID] = true
	}
	tagIDs := make(map[int64]bool, len(tags))
	for _, t := range tags {
		tagIDs[t.ID] = true
	}
	sanitizeResult(&result, memberIDs, tagIDs)
	return &result, nil
}

// sanitizeResult drops unusable drafts and strips references the family
// does not have.
func sanitizeResult(r *ParseResult, members, tags map[int64]bool) {
	r.Confidence = clamp01(r.Confidence)
	r.Clarification = strings.TrimSpace(r.Clarification)

	drafts := make([]TaskDraft, 0, len(r.Tasks))
	for _, d := range r.Tasks {
		d.Title = strings.TrimSpace(d.Title)
		if d.Title == "" {
			continue
		}
		if d.Points < 0 {
			d.Points = 0
		}

		if d.IsBonusTask {
			d.AssigneeID = nil
		} else if d.AssigneeID != nil && !members[*d.AssigneeID] {
			d.AssigneeID = nil
			r.Confidence *= unknownAssigneePenalty
		}

		if d.IsRecurring {
			if _, err := models.ParseRecurrencePattern(d.RecurrencePattern); err != nil {
				d.IsRecurring = false
				d.RecurrencePattern = ""
			}
		} else {
			d.RecurrencePattern = ""
		}

		if _, err := ParseDueDate(d.DueDate); err != nil {
			d.DueDate = ""
		}
		if d.DueDate == "" {
			d.DueDateOnly = false
		}

		known := make([]int64, 0, len(d.TagIDs))
		for _, id := range uniqueIDs(d.TagIDs) {
			if tags[id] {
				known = append(known, id)
			}
		}
		d.TagIDs = known

		drafts = append(drafts, d)
		if len(drafts) == maxDrafts {
			break
		}
	}
	r.Tasks = drafts
}

func clamp01(f float64) float64 {
	switch {
	case f < 0 || math.IsNaN(f):
		return 0
	case f > 1:
		return 1
	}
	return f
}

// CreateFromDrafts saves reviewed drafts as tasks. Drafts are created in
// order and the first failure stops the batch.
func (s *AssistantService) CreateFromDrafts(ctx context.Context, actor models.Actor, drafts []TaskDraft) ([]*models.Task, error) {
	if !models.CanCreateTasks(actor.Role) {
		return nil, ErrForbidden
	}
	if len(drafts) == 0 {
		return nil, validation.Invalid("tasks", "at least one task is required")
	}
	if len(drafts) > maxDrafts {
		return nil, validation.Invalid("tasks", fmt.Sprintf("at most %d tasks can be created at once", maxDrafts))
	}

	created := make([]*models.Task, 0, len(drafts))
	for _, d := range drafts {
		task, err := s.tasks.Create(ctx, actor, CreateTaskInput{
			Title:             d.Title,
			Description:       d.Description,
			Points:            d.Points,
			DueDate:           d.DueDate,
			DueDateOnly:       d.DueDateOnly,
			AssignedTo:        d.AssigneeID,
			IsBonusTask:       d.IsBonusTask,
			IsRecurring:       d.IsRecurring,
			RecurrencePattern: d.RecurrencePattern,
			TagIDs:            d.TagIDs,
		})
		if err != nil {
			return created, err
		}
		created = append(created, task)
	}
	return created, nil
}
