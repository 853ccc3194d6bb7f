package repository

import (
	"fmt"
	"time"

	"chorechart/internal/database"
	"chorechart/internal/models"
)

// TagRepository handles family-scoped task tags
type TagRepository struct {
	db database.DBTX
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db database.DBTX) *TagRepository {
	return &TagRepository{db: db}
}

// CreateTag inserts a tag. Names are unique within a family.
func (r *TagRepository) CreateTag(familyID int64, name, color string) (*models.TaskTag, error) {
	now := time.Now().UTC()
	query := "INSERT INTO task_tags (family_id, name, color, created_at) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(query, familyID, name, color, now)
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return &models.TaskTag{ID: id, FamilyID: familyID, Name: name, Color: color, CreatedAt: now}, nil
}

// ListTags returns a family's tags ordered by name
func (r *TagRepository) ListTags(familyID int64) ([]models.TaskTag, error) {
	return r.query("SELECT id, family_id, name, color, created_at FROM task_tags WHERE family_id = ? ORDER BY name", familyID)
}

// GetAllTags retrieves every tag, for export
func (r *TagRepository) GetAllTags() ([]models.TaskTag, error) {
	return r.query("SELECT id, family_id, name, color, created_at FROM task_tags ORDER BY id")
}

func (r *TagRepository) query(query string, args ...interface{}) ([]models.TaskTag, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	tags := []models.TaskTag{}
	for rows.Next() {
		var tag models.TaskTag
		if err := rows.Scan(&tag.ID, &tag.FamilyID, &tag.Name, &tag.Color, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// CountFamilyTags counts how many of ids belong to the family
func (r *TagRepository) CountFamilyTags(familyID int64, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := "SELECT COUNT(*) FROM task_tags WHERE family_id = ? AND id IN (" + placeholders(len(ids)) + ")"
	args := append([]interface{}{familyID}, int64Args(ids)...)

	var count int
	if err := r.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tags: %w", err)
	}
	return count, nil
}

// DeleteTag removes a tag and its task assignments
func (r *TagRepository) DeleteTag(familyID, tagID int64) (bool, error) {
	result, err := r.db.Exec("DELETE FROM task_tags WHERE id = ? AND family_id = ?", tagID, familyID)
	if err != nil {
		return false, fmt.Errorf("failed to delete tag: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return n > 0, nil
}
