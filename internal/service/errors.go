package service

import "errors"

// Errors shared by every service. Handlers map them onto the API error codes.
var (
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("not allowed for this role")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrNoFamily           = errors.New("user does not belong to a family")
	ErrAIUnavailable      = errors.New("task assistant unavailable")
)
