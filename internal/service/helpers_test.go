package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chorechart/internal/database"
	"chorechart/internal/database/dbtest"
	"chorechart/internal/models"
	"chorechart/internal/repository"
	"chorechart/internal/security"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []NotificationEvent
}

func (n *recordingNotifier) Dispatch(_ context.Context, ev NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) ofType(typ models.NotificationType) []NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []NotificationEvent
	for _, ev := range n.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type testEnv struct {
	db       *database.DB
	users    *repository.UserRepository
	families *repository.FamilyRepository
	tasks    *repository.TaskRepository
	points   *repository.PointsRepository
	tagRepo  *repository.TagRepository

	notifier   *recordingNotifier
	auth       *AuthService
	family     *FamilyService
	recurrence *RecurrenceService
	taskSvc    *TaskService
	pointsSvc  *PointsService
	tagSvc     *TagService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := dbtest.New(t)
	env := &testEnv{
		db:       db,
		users:    repository.NewUserRepository(db),
		families: repository.NewFamilyRepository(db),
		tasks:    repository.NewTaskRepository(db),
		points:   repository.NewPointsRepository(db),
		tagRepo:  repository.NewTagRepository(db),
		notifier: &recordingNotifier{},
	}

	tokens := security.NewTokenIssuer("test-secret", time.Hour)
	env.auth = NewAuthService(db, env.users, env.families, tokens, nil, nil, 24*time.Hour)
	env.family = NewFamilyService(db, env.families, env.users, nil)
	env.recurrence = NewRecurrenceService(db, env.tasks, nil)
	env.taskSvc = NewTaskService(db, env.tasks, env.points, env.families, env.tagRepo, env.recurrence, env.notifier, nil, nil)
	env.pointsSvc = NewPointsService(db, env.points, env.families, env.notifier, nil, nil)
	env.tagSvc = NewTagService(env.tagRepo)
	env.setNow(testNow)
	return env
}

func (e *testEnv) setNow(now time.Time) {
	clock := func() time.Time { return now }
	e.auth.now = clock
	e.recurrence.now = clock
	e.taskSvc.now = clock
	e.pointsSvc.now = clock
}

// registerParent creates a new family and returns its admin parent
func (e *testEnv) registerParent(t *testing.T, email, name string) (models.Actor, *models.Family) {
	t.Helper()
	user, member, err := e.auth.Register(context.Background(), RegisterInput{
		Email:       email,
		Password:    "password123",
		Name:        name,
		AccountType: AccountParent,
	})
	require.NoError(t, err)

	family, err := e.families.GetFamilyByID(member.FamilyID)
	require.NoError(t, err)
	require.NotNil(t, family)
	return models.Actor{UserID: user.ID, FamilyID: member.FamilyID, Role: member.Role}, family
}

func (e *testEnv) join(t *testing.T, family *models.Family, email, name, accountType string) models.Actor {
	t.Helper()
	user, member, err := e.auth.Register(context.Background(), RegisterInput{
		Email:       email,
		Password:    "password123",
		Name:        name,
		FamilyCode:  family.FamilyCode,
		AccountType: accountType,
	})
	require.NoError(t, err)
	return models.Actor{UserID: user.ID, FamilyID: member.FamilyID, Role: member.Role}
}

func (e *testEnv) createTask(t *testing.T, parent models.Actor, in CreateTaskInput) *models.Task {
	t.Helper()
	task, err := e.taskSvc.Create(context.Background(), parent, in)
	require.NoError(t, err)
	return task
}

func (e *testEnv) balance(t *testing.T, actor models.Actor) int {
	t.Helper()
	b, err := e.pointsSvc.CurrentBalance(actor.UserID, actor.FamilyID)
	require.NoError(t, err)
	return b
}

func int64p(v int64) *int64 { return &v }
