package repository

import (
	"database/sql"
	"fmt"
	"time"

	"chorechart/internal/database"
	"chorechart/internal/models"
)

// FamilyRepository handles database operations for families and memberships
type FamilyRepository struct {
	db database.DBTX
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db database.DBTX) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *FamilyRepository) WithTx(tx *database.Tx) *FamilyRepository {
	return &FamilyRepository{db: tx}
}

// CreateFamily inserts a family. Members are added separately.
func (r *FamilyRepository) CreateFamily(name, code string) (*models.Family, error) {
	now := time.Now().UTC()
	query := "INSERT INTO families (name, family_code, created_at, updated_at) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(query, name, code, now, now)
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create family: %w", err)
	}

	return &models.Family{
		ID:         id,
		Name:       name,
		FamilyCode: code,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (r *FamilyRepository) getFamily(where string, arg interface{}) (*models.Family, error) {
	query := "SELECT id, name, family_code, created_at, updated_at FROM families WHERE " + where
	family := &models.Family{}
	err := r.db.QueryRow(query, arg).Scan(
		&family.ID,
		&family.Name,
		&family.FamilyCode,
		&family.CreatedAt,
		&family.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	return family, nil
}

// GetFamilyByID retrieves a family by ID
func (r *FamilyRepository) GetFamilyByID(familyID int64) (*models.Family, error) {
	return r.getFamily("id = ?", familyID)
}

// GetFamilyByCode retrieves a family by its join code
func (r *FamilyRepository) GetFamilyByCode(code string) (*models.Family, error) {
	return r.getFamily("family_code = ?", code)
}

// UpdateFamilyCode replaces the family's join code
func (r *FamilyRepository) UpdateFamilyCode(familyID int64, code string) error {
	query := "UPDATE families SET family_code = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.Exec(query, code, time.Now().UTC(), familyID); err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update family code: %w", err)
	}
	return nil
}

// GetAllFamilies retrieves every family
func (r *FamilyRepository) GetAllFamilies() ([]models.Family, error) {
	rows, err := r.db.Query("SELECT id, name, family_code, created_at, updated_at FROM families ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	var families []models.Family
	for rows.Next() {
		var f models.Family
		if err := rows.Scan(&f.ID, &f.Name, &f.FamilyCode, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, f)
	}
	return families, rows.Err()
}

// AddMember adds a user to a family with the given role
func (r *FamilyRepository) AddMember(familyID, userID int64, role models.Role) (*models.FamilyMember, error) {
	now := time.Now().UTC()
	query := "INSERT INTO family_members (family_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(query, familyID, userID, string(role), now)
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to add family member: %w", err)
	}

	return &models.FamilyMember{
		ID:       id,
		FamilyID: familyID,
		UserID:   userID,
		Role:     role,
		JoinedAt: now,
	}, nil
}

func scanMember(row rowScanner) (*models.FamilyMember, error) {
	m := &models.FamilyMember{}
	var role string
	if err := row.Scan(&m.ID, &m.FamilyID, &m.UserID, &role, &m.JoinedAt); err != nil {
		return nil, err
	}
	parsed, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}
	m.Role = parsed
	return m, nil
}

// GetMembership returns the user's earliest family membership
func (r *FamilyRepository) GetMembership(userID int64) (*models.FamilyMember, error) {
	query := `
		SELECT id, family_id, user_id, role, joined_at
		FROM family_members
		WHERE user_id = ?
		ORDER BY joined_at, id
		LIMIT 1
	`
	m, err := scanMember(r.db.QueryRow(query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// GetMember returns the user's membership in a specific family
func (r *FamilyRepository) GetMember(familyID, userID int64) (*models.FamilyMember, error) {
	query := `
		SELECT id, family_id, user_id, role, joined_at
		FROM family_members
		WHERE family_id = ? AND user_id = ?
	`
	m, err := scanMember(r.db.QueryRow(query, familyID, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family member: %w", err)
	}
	return m, nil
}

// ListMembers returns all members of a family with their names
func (r *FamilyRepository) ListMembers(familyID int64) ([]models.MemberWithUser, error) {
	query := `
		SELECT fm.id, fm.family_id, fm.user_id, fm.role, fm.joined_at, u.name, u.email
		FROM family_members fm
		INNER JOIN users u ON u.id = fm.user_id
		WHERE fm.family_id = ?
		ORDER BY fm.joined_at, fm.id
	`
	rows, err := r.db.Query(query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family members: %w", err)
	}
	defer rows.Close()

	var members []models.MemberWithUser
	for rows.Next() {
		var m models.MemberWithUser
		var role string
		if err := rows.Scan(&m.ID, &m.FamilyID, &m.UserID, &role, &m.JoinedAt, &m.Name, &m.Email); err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		m.Role = models.Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

// RemoveMember deletes a membership. It reports whether a row was removed.
func (r *FamilyRepository) RemoveMember(familyID, userID int64) (bool, error) {
	result, err := r.db.Exec("DELETE FROM family_members WHERE family_id = ? AND user_id = ?", familyID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove family member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read remove result: %w", err)
	}
	return n > 0, nil
}

// GetAllMembers retrieves every membership row
func (r *FamilyRepository) GetAllMembers() ([]models.FamilyMember, error) {
	rows, err := r.db.Query("SELECT id, family_id, user_id, role, joined_at FROM family_members ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query family members: %w", err)
	}
	defer rows.Close()

	var members []models.FamilyMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}
