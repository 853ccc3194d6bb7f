package models

import "time"

// NotificationType classifies in-app notifications
type NotificationType string

const (
	NotifyTaskAssigned   NotificationType = "TASK_ASSIGNED"
	NotifyBonusPosted    NotificationType = "BONUS_TASK_AVAILABLE"
	NotifyTaskClaimed    NotificationType = "TASK_CLAIMED"
	NotifyTaskCompleted  NotificationType = "TASK_COMPLETED"
	NotifyTaskVerified   NotificationType = "TASK_VERIFIED"
	NotifyTaskDeclined   NotificationType = "TASK_DECLINED"
	NotifyPointsAdded    NotificationType = "POINTS_ADDED"
	NotifyPointsDeducted NotificationType = "POINTS_DEDUCTED"
)

// Notification is an in-app message for a single user
type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"userId"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	TaskID    *int64           `json:"taskId,omitempty"`
	IsRead    bool             `json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
}
