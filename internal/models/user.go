package models

import "time"

// User is a parent or child account. Children have no OAuth identity and are
// usually created by a parent.
type User struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	OAuthProvider string    `json:"-"`
	OAuthSubject  string    `json:"-"`
	NotifyInApp   bool      `json:"notifyInApp"`
	NotifySMS     bool      `json:"notifySms"`
	NotifyEmail   bool      `json:"notifyEmail"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NotificationPreferences is the mutable subset of a user's delivery settings
type NotificationPreferences struct {
	Phone       string `json:"phone"`
	NotifyInApp bool   `json:"notifyInApp"`
	NotifySMS   bool   `json:"notifySms"`
	NotifyEmail bool   `json:"notifyEmail"`
}

// Session represents an authenticated session
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
