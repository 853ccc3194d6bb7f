package service

import (
	"errors"
	"strings"

	"chorechart/internal/models"
	"chorechart/internal/repository"
	"chorechart/internal/validation"
)

const defaultTagColor = "#4A90E2"

// CreateTagInput names a new family tag
type CreateTagInput struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// TagService manages family-scoped task tags
type TagService struct {
	tags *repository.TagRepository
}

// NewTagService creates a tag service
func NewTagService(tags *repository.TagRepository) *TagService {
	return &TagService{tags: tags}
}

// Create adds a tag. Parents only.
func (s *TagService) Create(actor models.Actor, in CreateTagInput) (*models.TaskTag, error) {
	if !models.CanCreateTasks(actor.Role) {
		return nil, ErrForbidden
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Color == "" {
		in.Color = defaultTagColor
	}

	tag, err := s.tags.CreateTag(actor.FamilyID, in.Name, in.Color)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, ErrConflict
	}
	return tag, err
}

// List returns the family's tags
func (s *TagService) List(actor models.Actor) ([]models.TaskTag, error) {
	return s.tags.ListTags(actor.FamilyID)
}

// Delete removes a tag and detaches it from tasks. Parents only.
func (s *TagService) Delete(actor models.Actor, tagID int64) error {
	if !models.CanCreateTasks(actor.Role) {
		return ErrForbidden
	}
	ok, err := s.tags.DeleteTag(actor.FamilyID, tagID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
