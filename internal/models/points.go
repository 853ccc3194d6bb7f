package models

import "time"

// PointsEntry is one append-only ledger row
type PointsEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	FamilyID  int64     `json:"familyId"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	TaskID    *int64    `json:"taskId,omitempty"`
	CreatedBy int64     `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// PointsHistoryEntry is a ledger row with the user's balance after it
type PointsHistoryEntry struct {
	PointsEntry
	RunningBalance int `json:"runningBalance"`
}

// MemberBalance is one row of the family leaderboard
type MemberBalance struct {
	UserID  int64  `json:"userId"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	Balance int    `json:"balance"`
}
