package repository

import (
	"database/sql"
	"fmt"

	"chorechart/internal/database"
	"chorechart/internal/models"
)

// NotificationRepository stores in-app notifications
type NotificationRepository struct {
	db database.DBTX
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db database.DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification and fills in its ID
func (r *NotificationRepository) Create(n *models.Notification) error {
	n.CreatedAt = n.CreatedAt.UTC()
	query := `
		INSERT INTO notifications (user_id, title, message, type, task_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, n.UserID, n.Title, n.Message, string(n.Type), nullInt64(n.TaskID), false, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	n.ID = id
	return nil
}

// ListForUser returns a user's notifications, newest first
func (r *NotificationRepository) ListForUser(userID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, title, message, type, task_id, is_read, created_at
		FROM notifications
		WHERE user_id = ?
	`
	args := []interface{}{userID}
	if unreadOnly {
		query += " AND is_read = ?"
		args = append(args, false)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var typ string
		var taskID sql.NullInt64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ, &taskID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = models.NotificationType(typ)
		n.TaskID = int64Ptr(taskID)
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// UnreadCount counts a user's unread notifications
func (r *NotificationRepository) UnreadCount(userID int64) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = ?", userID, false).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one of the user's notifications as read
func (r *NotificationRepository) MarkRead(userID, id int64) (bool, error) {
	result, err := r.db.Exec("UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?", true, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	return n > 0, nil
}

// MarkAllRead marks every notification of the user as read
func (r *NotificationRepository) MarkAllRead(userID int64) (int64, error) {
	result, err := r.db.Exec("UPDATE notifications SET is_read = ? WHERE user_id = ? AND is_read = ?", true, userID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected()
}

// Delete removes one of the user's notifications
func (r *NotificationRepository) Delete(userID, id int64) (bool, error) {
	result, err := r.db.Exec("DELETE FROM notifications WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete notification: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return n > 0, nil
}
