package repository

import (
	"database/sql"
	"fmt"
	"time"

	"chorechart/internal/database"
	"chorechart/internal/models"
)

const taskColumns = `id, family_id, title, description, points, due_date, due_date_only,
	created_by, assigned_to, status, is_recurring, recurrence_pattern, is_bonus_task,
	series_id, completed_at, verified_at, verified_by, decline_reason, created_at, updated_at`

// TaskRepository handles database operations for tasks and their tags.
// State transitions are conditional updates; a false result means the task
// was not in an eligible state.
type TaskRepository struct {
	db database.DBTX
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db database.DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *TaskRepository) WithTx(tx *database.Tx) *TaskRepository {
	return &TaskRepository{db: tx}
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t                                models.Task
		dueDate, completedAt, verifiedAt sql.NullTime
		assignedTo, seriesID, verifiedBy sql.NullInt64
		status, pattern                  string
	)
	err := row.Scan(
		&t.ID,
		&t.FamilyID,
		&t.Title,
		&t.Description,
		&t.Points,
		&dueDate,
		&t.DueDateOnly,
		&t.CreatedBy,
		&assignedTo,
		&status,
		&t.IsRecurring,
		&pattern,
		&t.IsBonusTask,
		&seriesID,
		&completedAt,
		&verifiedAt,
		&verifiedBy,
		&t.DeclineReason,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = models.TaskStatus(status)
	t.RecurrencePattern = models.RecurrencePattern(pattern)
	t.DueDate = timePtr(dueDate)
	t.CompletedAt = timePtr(completedAt)
	t.VerifiedAt = timePtr(verifiedAt)
	t.AssignedTo = int64Ptr(assignedTo)
	t.SeriesID = int64Ptr(seriesID)
	t.VerifiedBy = int64Ptr(verifiedBy)
	t.Tags = []models.TaskTag{}
	return &t, nil
}

// CreateTask inserts a task and sets its ID and timestamps
func (r *TaskRepository) CreateTask(t *models.Task) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO tasks (family_id, title, description, points, due_date, due_date_only,
			created_by, assigned_to, status, is_recurring, recurrence_pattern, is_bonus_task,
			series_id, decline_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query,
		t.FamilyID, t.Title, t.Description, t.Points, nullTime(t.DueDate), t.DueDateOnly,
		t.CreatedBy, nullInt64(t.AssignedTo), string(t.Status), t.IsRecurring, string(t.RecurrencePattern), t.IsBonusTask,
		nullInt64(t.SeriesID), t.DeclineReason, now, now,
	)
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create task: %w", err)
	}

	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.DueDate != nil {
		d := t.DueDate.UTC()
		t.DueDate = &d
	}
	if t.Tags == nil {
		t.Tags = []models.TaskTag{}
	}
	return nil
}

// GetTask retrieves a task within a family, with its tags
func (r *TaskRepository) GetTask(familyID, taskID int64) (*models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE id = ? AND family_id = ?"
	task, err := scanTask(r.db.QueryRow(query, taskID, familyID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	if err := r.attachTags([]*models.Task{task}); err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns a family's tasks, newest first. When childID is set the
// listing is restricted to that child's assignments plus open bonus tasks.
func (r *TaskRepository) ListTasks(familyID int64, filter models.TaskFilter, childID *int64) ([]*models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE family_id = ?"
	args := []interface{}{familyID}

	if childID != nil {
		query += " AND (assigned_to = ? OR (status = ? AND is_bonus_task = ?))"
		args = append(args, *childID, string(models.TaskAvailable), true)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.AssignedTo != nil {
		query += " AND assigned_to = ?"
		args = append(args, *filter.AssignedTo)
	}
	query += " ORDER BY created_at DESC, id DESC"

	return r.queryTasks(query, args...)
}

func (r *TaskRepository) queryTasks(query string, args ...interface{}) ([]*models.Task, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	rows.Close()

	if err := r.attachTags(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateTaskDetails rewrites the editable fields of a task that is not yet verified
func (r *TaskRepository) UpdateTaskDetails(t *models.Task) (bool, error) {
	query := `
		UPDATE tasks
		SET title = ?, description = ?, points = ?, due_date = ?, due_date_only = ?, updated_at = ?
		WHERE id = ? AND family_id = ? AND status <> ?
	`
	return r.execTransition(query,
		t.Title, t.Description, t.Points, nullTime(t.DueDate), t.DueDateOnly, time.Now().UTC(),
		t.ID, t.FamilyID, string(models.TaskVerified),
	)
}

// DeleteTask removes a task. Ledger rows keep their reason and lose the task link.
func (r *TaskRepository) DeleteTask(familyID, taskID int64) (bool, error) {
	return r.execTransition("DELETE FROM tasks WHERE id = ? AND family_id = ?", taskID, familyID)
}

// PromoteSeriesRoot moves the instances of the series rooted at rootID onto
// the earliest remaining instance, which becomes the new root. It must run
// before the root is deleted, since the delete would null their series_id.
func (r *TaskRepository) PromoteSeriesRoot(rootID int64) error {
	var newRoot int64
	err := r.db.QueryRow("SELECT id FROM tasks WHERE series_id = ? AND id <> ? ORDER BY id LIMIT 1", rootID, rootID).Scan(&newRoot)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find series successor: %w", err)
	}

	if _, err := r.db.Exec("UPDATE tasks SET series_id = ? WHERE series_id = ? AND id <> ?", newRoot, rootID, rootID); err != nil {
		return fmt.Errorf("failed to move series root: %w", err)
	}
	return nil
}

// ClaimTask assigns an open bonus task to userID
func (r *TaskRepository) ClaimTask(familyID, taskID, userID int64, now time.Time) (bool, error) {
	query := `
		UPDATE tasks
		SET status = ?, assigned_to = ?, updated_at = ?
		WHERE id = ? AND family_id = ? AND status = ? AND assigned_to IS NULL AND is_bonus_task = ?
	`
	return r.execTransition(query,
		string(models.TaskPending), userID, now.UTC(),
		taskID, familyID, string(models.TaskAvailable), true,
	)
}

// AssignTask gives an available or pending task to a new assignee
func (r *TaskRepository) AssignTask(familyID, taskID, assigneeID int64, now time.Time) (bool, error) {
	query := `
		UPDATE tasks
		SET status = ?, assigned_to = ?, updated_at = ?
		WHERE id = ? AND family_id = ? AND status IN (?, ?)
	`
	return r.execTransition(query,
		string(models.TaskPending), assigneeID, now.UTC(),
		taskID, familyID, string(models.TaskAvailable), string(models.TaskPending),
	)
}

// MarkCompleted moves a pending task owned by assigneeID to COMPLETED
func (r *TaskRepository) MarkCompleted(familyID, taskID, assigneeID int64, now time.Time) (bool, error) {
	query := `
		UPDATE tasks
		SET status = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND family_id = ? AND status = ? AND assigned_to = ?
	`
	return r.execTransition(query,
		string(models.TaskCompleted), now.UTC(), now.UTC(),
		taskID, familyID, string(models.TaskPending), assigneeID,
	)
}

// MarkVerified moves a COMPLETED task to VERIFIED
func (r *TaskRepository) MarkVerified(familyID, taskID, verifierID int64, now time.Time) (bool, error) {
	query := `
		UPDATE tasks
		SET status = ?, verified_at = ?, verified_by = ?, updated_at = ?
		WHERE id = ? AND family_id = ? AND status = ?
	`
	return r.execTransition(query,
		string(models.TaskVerified), now.UTC(), verifierID, now.UTC(),
		taskID, familyID, string(models.TaskCompleted),
	)
}

// MarkSelfVerified moves a pending task straight to VERIFIED for an assignee
// who is allowed to approve their own work.
func (r *TaskRepository) MarkSelfVerified(familyID, taskID, assigneeID int64, now time.Time) (bool, error) {
	query := `
		UPDATE tasks
		SET status = ?, completed_at = ?, verified_at = ?, verified_by = ?, updated_at = ?
		WHERE id = ? AND family_id = ? AND status = ? AND assigned_to = ?
	`
	return r.execTransition(query,
		string(models.TaskVerified), now.UTC(), now.UTC(), assigneeID, now.UTC(),
		taskID, familyID, string(models.TaskPending), assigneeID,
	)
}

// MarkDeclined returns a COMPLETED task to PENDING
func (r *TaskRepository) MarkDeclined(familyID, taskID int64, reason string, now time.Time) (bool, error) {
	query := `
		UPDATE tasks
		SET status = ?, completed_at = NULL, decline_reason = ?, updated_at = ?
		WHERE id = ? AND family_id = ? AND status = ?
	`
	return r.execTransition(query,
		string(models.TaskPending), reason, now.UTC(),
		taskID, familyID, string(models.TaskCompleted),
	)
}

func (r *TaskRepository) execTransition(query string, args ...interface{}) (bool, error) {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	return n > 0, nil
}

// ListRecurringTasks returns every recurring task of a family
func (r *TaskRepository) ListRecurringTasks(familyID int64) ([]*models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE family_id = ? AND is_recurring = ? ORDER BY id"
	return r.queryTasks(query, familyID, true)
}

// SeriesDueDates returns the due dates of every task in a recurrence series
func (r *TaskRepository) SeriesDueDates(seriesID int64) ([]time.Time, error) {
	query := "SELECT due_date FROM tasks WHERE (id = ? OR series_id = ?) AND due_date IS NOT NULL"
	rows, err := r.db.Query(query, seriesID, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to query series due dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan due date: %w", err)
		}
		dates = append(dates, d.UTC())
	}
	return dates, rows.Err()
}

// ListRecurringFamilyIDs returns the families that have recurring tasks
func (r *TaskRepository) ListRecurringFamilyIDs() ([]int64, error) {
	rows, err := r.db.Query("SELECT DISTINCT family_id FROM tasks WHERE is_recurring = ? ORDER BY family_id", true)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring families: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan family id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetAllTasks retrieves every task, for export
func (r *TaskRepository) GetAllTasks() ([]*models.Task, error) {
	return r.queryTasks("SELECT " + taskColumns + " FROM tasks ORDER BY id")
}

// SetTaskTags replaces the tags attached to a task
func (r *TaskRepository) SetTaskTags(taskID int64, tagIDs []int64) error {
	if _, err := r.db.Exec("DELETE FROM task_tag_assignments WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("failed to clear task tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := r.db.Exec("INSERT INTO task_tag_assignments (task_id, tag_id) VALUES (?, ?)", taskID, tagID); err != nil {
			return fmt.Errorf("failed to attach tag: %w", err)
		}
	}
	return nil
}

func (r *TaskRepository) attachTags(tasks []*models.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Task, len(tasks))
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	query := `
		SELECT a.task_id, t.id, t.family_id, t.name, t.color, t.created_at
		FROM task_tag_assignments a
		INNER JOIN task_tags t ON t.id = a.tag_id
		WHERE a.task_id IN (` + placeholders(len(ids)) + `)
		ORDER BY t.name
	`
	rows, err := r.db.Query(query, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("failed to query task tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID int64
		var tag models.TaskTag
		if err := rows.Scan(&taskID, &tag.ID, &tag.FamilyID, &tag.Name, &tag.Color, &tag.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan task tag: %w", err)
		}
		if t, ok := byID[taskID]; ok {
			t.Tags = append(t.Tags, tag)
		}
	}
	return rows.Err()
}
