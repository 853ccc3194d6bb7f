package models

import "time"

// Family is a named household with a shareable join code
type Family struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	FamilyCode string    `json:"familyCode"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// FamilyMember represents the relationship between a user and a family
type FamilyMember struct {
	ID       int64     `json:"id"`
	FamilyID int64     `json:"familyId"`
	UserID   int64     `json:"userId"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// MemberWithUser joins a membership with the member's display details
type MemberWithUser struct {
	FamilyMember
	Name  string `json:"name"`
	Email string `json:"email"`
}
