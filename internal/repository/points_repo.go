package repository

import (
	"database/sql"
	"fmt"
	"time"

	"chorechart/internal/database"
	"chorechart/internal/models"
)

const pointsColumns = "id, user_id, family_id, points, reason, task_id, created_by, created_at"

// PointsRepository is the append-only points ledger. There is no update or
// delete; balances are always summed from the rows.
type PointsRepository struct {
	db database.DBTX
}

// NewPointsRepository creates a new points repository
func NewPointsRepository(db database.DBTX) *PointsRepository {
	return &PointsRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *PointsRepository) WithTx(tx *database.Tx) *PointsRepository {
	return &PointsRepository{db: tx}
}

// Append inserts a ledger entry and fills in its ID and timestamp
func (r *PointsRepository) Append(e *models.PointsEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	query := `
		INSERT INTO points_history (user_id, family_id, points, reason, task_id, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, e.UserID, e.FamilyID, e.Points, e.Reason, nullInt64(e.TaskID), e.CreatedBy, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append points entry: %w", err)
	}
	e.ID = id
	return nil
}

// Balance sums every ledger entry for the user in the family
func (r *PointsRepository) Balance(userID, familyID int64) (int, error) {
	var balance int
	query := "SELECT COALESCE(SUM(points), 0) FROM points_history WHERE user_id = ? AND family_id = ?"
	if err := r.db.QueryRow(query, userID, familyID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to sum points: %w", err)
	}
	return balance, nil
}

// History returns a user's entries in a family, oldest first
func (r *PointsRepository) History(userID, familyID int64) ([]models.PointsEntry, error) {
	query := "SELECT " + pointsColumns + " FROM points_history WHERE user_id = ? AND family_id = ? ORDER BY id"
	return r.query(query, userID, familyID)
}

// FamilyHistory returns every entry in a family, oldest first
func (r *PointsRepository) FamilyHistory(familyID int64) ([]models.PointsEntry, error) {
	query := "SELECT " + pointsColumns + " FROM points_history WHERE family_id = ? ORDER BY id"
	return r.query(query, familyID)
}

// GetAllEntries retrieves the whole ledger, for export
func (r *PointsRepository) GetAllEntries() ([]models.PointsEntry, error) {
	return r.query("SELECT " + pointsColumns + " FROM points_history ORDER BY id")
}

func (r *PointsRepository) query(query string, args ...interface{}) ([]models.PointsEntry, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query points history: %w", err)
	}
	defer rows.Close()

	entries := []models.PointsEntry{}
	for rows.Next() {
		var e models.PointsEntry
		var taskID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.UserID, &e.FamilyID, &e.Points, &e.Reason, &taskID, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan points entry: %w", err)
		}
		e.TaskID = int64Ptr(taskID)
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FamilyBalances sums the ledger for every member of a family, highest first
func (r *PointsRepository) FamilyBalances(familyID int64) ([]models.MemberBalance, error) {
	query := `
		SELECT fm.user_id, u.name, fm.role, COALESCE(SUM(ph.points), 0) AS balance
		FROM family_members fm
		INNER JOIN users u ON u.id = fm.user_id
		LEFT JOIN points_history ph ON ph.user_id = fm.user_id AND ph.family_id = fm.family_id
		WHERE fm.family_id = ?
		GROUP BY fm.user_id, u.name, fm.role
		ORDER BY balance DESC, u.name
	`
	rows, err := r.db.Query(query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	balances := []models.MemberBalance{}
	for rows.Next() {
		var b models.MemberBalance
		var role string
		if err := rows.Scan(&b.UserID, &b.Name, &role, &b.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		b.Role = models.Role(role)
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
