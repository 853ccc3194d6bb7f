package models

import (
	"fmt"
	"time"
)

// TaskStatus is a task's position in its lifecycle
type TaskStatus string

const (
	TaskAvailable TaskStatus = "AVAILABLE"
	TaskPending   TaskStatus = "PENDING"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskVerified  TaskStatus = "VERIFIED"
)

// ParseTaskStatus validates a status filter value
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch st := TaskStatus(s); st {
	case TaskAvailable, TaskPending, TaskCompleted, TaskVerified:
		return st, nil
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Task is a unit of work owned by a family
type Task struct {
	ID                int64             `json:"id"`
	FamilyID          int64             `json:"familyId"`
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	Points            int               `json:"points"`
	DueDate           *time.Time        `json:"dueDate,omitempty"`
	DueDateOnly       bool              `json:"dueDateOnly"`
	CreatedBy         int64             `json:"createdBy"`
	AssignedTo        *int64            `json:"assignedTo,omitempty"`
	Status            TaskStatus        `json:"status"`
	IsRecurring       bool              `json:"isRecurring"`
	RecurrencePattern RecurrencePattern `json:"recurrencePattern,omitempty"`
	IsBonusTask       bool              `json:"isBonusTask"`
	SeriesID          *int64            `json:"seriesId,omitempty"`
	CompletedAt       *time.Time        `json:"completedAt,omitempty"`
	VerifiedAt        *time.Time        `json:"verifiedAt,omitempty"`
	VerifiedBy        *int64            `json:"verifiedBy,omitempty"`
	DeclineReason     string            `json:"declineReason,omitempty"`
	Tags              []TaskTag         `json:"tags"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// SeriesKey identifies the recurrence series a task belongs to. The first
// task of a series is its own root.
func (t *Task) SeriesKey() int64 {
	if t.SeriesID != nil {
		return *t.SeriesID
	}
	return t.ID
}

// IsAssignedTo reports whether userID is the current assignee
func (t *Task) IsAssignedTo(userID int64) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// TaskFilter narrows task listings
type TaskFilter struct {
	Status     TaskStatus
	AssignedTo *int64
}

// TaskTag is a family-scoped label
type TaskTag struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"familyId"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}
