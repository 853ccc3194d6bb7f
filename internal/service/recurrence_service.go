package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chorechart/internal/database"
	"chorechart/internal/models"
	"chorechart/internal/repository"
)

// maxInstancesPerSweep bounds how far a single sweep backfills one series
const maxInstancesPerSweep = 366

// RecurrenceService creates follow-up instances of recurring tasks
type RecurrenceService struct {
	db     *database.DB
	tasks  *repository.TaskRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewRecurrenceService creates a recurrence service
func NewRecurrenceService(db *database.DB, tasks *repository.TaskRepository, logger *zap.Logger) *RecurrenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecurrenceService{
		db:     db,
		tasks:  tasks,
		logger: logger,
		now:    time.Now,
	}
}

// NextDueDate adds one recurrence period to prev, keeping only the date
func NextDueDate(pattern models.RecurrencePattern, prev time.Time) (time.Time, error) {
	next, err := pattern.Next(models.DateOnly(prev))
	if err != nil {
		return time.Time{}, err
	}
	return next, nil
}

// GenerateNext creates the instance that follows t in its series. It returns
// nil when t does not recur or the next instance already exists.
func (s *RecurrenceService) GenerateNext(t *models.Task) (*models.Task, error) {
	if !t.IsRecurring || t.RecurrencePattern == "" {
		return nil, nil
	}

	base := models.DateOnly(s.now())
	if t.DueDate != nil {
		base = *t.DueDate
	}
	next, err := NextDueDate(t.RecurrencePattern, base)
	if err != nil {
		return nil, err
	}

	existing, err := s.seriesDates(t.SeriesKey())
	if err != nil {
		return nil, err
	}
	if existing[next] {
		return nil, nil
	}

	instance, err := s.createInstance(t, next)
	if err != nil || instance == nil {
		return nil, err
	}

	s.logger.Info("Recurring task generated",
		zap.Int64("series_id", t.SeriesKey()),
		zap.Int64("task_id", instance.ID),
		zap.Time("due_date", next),
	)
	return instance, nil
}

// SweepFamily backfills every recurring series in a family up to today and
// returns the number of instances created.
func (s *RecurrenceService) SweepFamily(familyID int64) (int, error) {
	recurring, err := s.tasks.ListRecurringTasks(familyID)
	if err != nil {
		return 0, err
	}

	// Latest instance of each series, by due date
	latest := make(map[int64]*models.Task)
	var order []int64
	for _, t := range recurring {
		if t.RecurrencePattern == "" {
			continue
		}
		key := t.SeriesKey()
		cur, ok := latest[key]
		if !ok {
			order = append(order, key)
			latest[key] = t
			continue
		}
		if laterInstance(t, cur) {
			latest[key] = t
		}
	}

	today := models.DateOnly(s.now())
	created := 0
	for _, key := range order {
		n, err := s.backfill(latest[key], today)
		created += n
		if err != nil {
			return created, err
		}
	}

	if created > 0 {
		s.logger.Info("Recurring sweep finished", zap.Int64("family_id", familyID), zap.Int("created", created))
	}
	return created, nil
}

// SweepAll runs SweepFamily for every family that has recurring tasks
func (s *RecurrenceService) SweepAll() (int, error) {
	familyIDs, err := s.tasks.ListRecurringFamilyIDs()
	if err != nil {
		return 0, err
	}

	total := 0
	for _, id := range familyIDs {
		n, err := s.SweepFamily(id)
		total += n
		if err != nil {
			return total, fmt.Errorf("family %d: %w", id, err)
		}
	}
	return total, nil
}

func (s *RecurrenceService) backfill(tmpl *models.Task, today time.Time) (int, error) {
	existing, err := s.seriesDates(tmpl.SeriesKey())
	if err != nil {
		return 0, err
	}

	base := models.DateOnly(tmpl.CreatedAt)
	if tmpl.DueDate != nil {
		base = *tmpl.DueDate
	}

	created := 0
	for i := 0; i < maxInstancesPerSweep; i++ {
		next, err := NextDueDate(tmpl.RecurrencePattern, base)
		if err != nil {
			return created, err
		}
		if next.After(today) {
			break
		}
		base = next
		if existing[next] {
			continue
		}

		instance, err := s.createInstance(tmpl, next)
		if err != nil {
			return created, err
		}
		if instance != nil {
			existing[next] = true
			created++
		}
	}
	return created, nil
}

func (s *RecurrenceService) seriesDates(seriesID int64) (map[time.Time]bool, error) {
	dates, err := s.tasks.SeriesDueDates(seriesID)
	if err != nil {
		return nil, err
	}
	set := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		set[models.DateOnly(d)] = true
	}
	return set, nil
}

// createInstance inserts a copy of tmpl due on due. A concurrent insert for
// the same (series, due date) is reported as nil, nil.
func (s *RecurrenceService) createInstance(tmpl *models.Task, due time.Time) (*models.Task, error) {
	seriesID := tmpl.SeriesKey()
	instance := &models.Task{
		FamilyID:          tmpl.FamilyID,
		Title:             tmpl.Title,
		Description:       tmpl.Description,
		Points:            tmpl.Points,
		DueDate:           &due,
		DueDateOnly:       tmpl.DueDateOnly,
		CreatedBy:         tmpl.CreatedBy,
		Status:            models.TaskPending,
		IsRecurring:       true,
		RecurrencePattern: tmpl.RecurrencePattern,
		IsBonusTask:       tmpl.IsBonusTask,
		SeriesID:          &seriesID,
		Tags:              tmpl.Tags,
	}
	if tmpl.IsBonusTask {
		instance.Status = models.TaskAvailable
	} else if tmpl.AssignedTo != nil {
		assignee := *tmpl.AssignedTo
		instance.AssignedTo = &assignee
	}

	// Instance and tags commit together
	err := s.db.WithTx(func(tx *database.Tx) error {
		tasks := s.tasks.WithTx(tx)
		if err := tasks.CreateTask(instance); err != nil {
			return err
		}
		if len(tmpl.Tags) == 0 {
			return nil
		}
		ids := make([]int64, 0, len(tmpl.Tags))
		for _, tag := range tmpl.Tags {
			ids = append(ids, tag.ID)
		}
		return tasks.SetTaskTags(instance.ID, ids)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func laterInstance(a, b *models.Task) bool {
	switch {
	case a.DueDate == nil:
		return false
	case b.DueDate == nil:
		return true
	case a.DueDate.Equal(*b.DueDate):
		return a.ID > b.ID
	}
	return a.DueDate.After(*b.DueDate)
}
