package repository

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorechart/internal/database"
	"chorechart/internal/models"
)

func newMockDB(t *testing.T, dialect database.Dialect) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &database.DB{DB: conn, Dialect: dialect}, mock
}

func TestPointsRepositoryAppend(t *testing.T) {
	db, mock := newMockDB(t, database.NewSQLiteDialect())
	repo := NewPointsRepository(db)

	taskID := int64(42)
	createdAt := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	entry := &models.PointsEntry{
		UserID:    2,
		FamilyID:  1,
		Points:    10,
		Reason:    "Completed task: Dishes",
		TaskID:    &taskID,
		CreatedBy: 1,
		CreatedAt: createdAt,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO points_history")).
		WithArgs(int64(2), int64(1), 10, "Completed task: Dishes", sqlmock.AnyArg(), int64(1), createdAt).
		WillReturnResult(sqlmock.NewResult(7, 1))

	require.NoError(t, repo.Append(entry))
	assert.Equal(t, int64(7), entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPointsRepositoryBalance(t *testing.T) {
	db, mock := newMockDB(t, database.NewSQLiteDialect())
	repo := NewPointsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(points), 0) FROM points_history WHERE user_id = ? AND family_id = ?")).
		WithArgs(int64(2), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(13))

	balance, err := repo.Balance(2, 1)
	require.NoError(t, err)
	assert.Equal(t, 13, balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPointsRepositoryBalanceError(t *testing.T) {
	db, mock := newMockDB(t, database.NewSQLiteDialect())
	repo := NewPointsRepository(db)

	mock.ExpectQuery("SELECT COALESCE").WillReturnError(errors.New("connection reset"))

	_, err := repo.Balance(2, 1)
	assert.ErrorContains(t, err, "failed to sum points")
}

func TestPointsRepositoryAppendPostgresUsesReturning(t *testing.T) {
	db, mock := newMockDB(t, database.NewPostgresDialect())
	repo := NewPointsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(99)))

	entry := &models.PointsEntry{UserID: 2, FamilyID: 1, Points: -3, Reason: "Deduction", CreatedBy: 1}
	require.NoError(t, repo.Append(entry))
	assert.Equal(t, int64(99), entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryClaimIsConditional(t *testing.T) {
	db, mock := newMockDB(t, database.NewSQLiteDialect())
	repo := NewTaskRepository(db)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = ? AND family_id = ? AND status = ? AND assigned_to IS NULL AND is_bonus_task = ?")).
		WithArgs("PENDING", int64(5), now, int64(3), int64(1), "AVAILABLE", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.ClaimTask(1, 3, 5, now)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
