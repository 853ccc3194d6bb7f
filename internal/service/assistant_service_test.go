package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorechart/internal/models"
)

type fakeCompleter struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

func newAssistant(env *testEnv, llm *fakeCompleter) *AssistantService {
	a := NewAssistantService(llm, env.families, env.tagRepo, env.taskSvc, nil, nil)
	a.now = func() time.Time { return testNow }
	return a
}

func TestParseTasks(t *testing.T) {
	env := newTestEnv(t)
	fam := newFamily(t, env)
	tag, err := env.tagSvc.Create(fam.parent, CreateTagInput{Name: "Kitchen"})
	require.NoError(t, err)

	llm := &fakeCompleter{reply: fmt.Sprintf(`{
		"tasks": [
			{"title": " Unload dishwasher ", "points": 5, "assigneeId": %d, "dueDate": "2024-01-02", "tagIds": [%d, 777]},
			{"title": "Walk dog", "points": -3, "assigneeId": 4242, "isRecurring": true, "recurrencePattern": "HOURLY"},
			{"title": "", "points": 1},
			{"title": "Wash car", "points": 10, "isBonusTask": true, "assigneeId": %d, "dueDate": "next week"}
		],
		"confidence": 0.9,
		"clarification": "Who should walk the dog?"
	}`, fam.child.UserID, tag.ID, fam.child.UserID)}

	result, err := newAssistant(env, llm).ParseTasks(context.Background(), fam.parent, "dishes for Kid tomorrow, someone walk the dog daily, bonus car wash")
	require.NoError(t, err)

	assert.Contains(t, llm.user, `"today":"2024-01-01"`)
	assert.Contains(t, llm.user, `"name":"Kid"`)
	assert.Contains(t, llm.user, `"name":"Kitchen"`)

	require.Len(t, result.Tasks, 3)

	dishes := result.Tasks[0]
	assert.Equal(t, "Unload dishwasher", dishes.Title)
	require.NotNil(t, dishes.AssigneeID)
	assert.Equal(t, fam.child.UserID, *dishes.AssigneeID)
	assert.Equal(t, []int64{tag.ID}, dishes.TagIDs)

	dog := result.Tasks[1]
	assert.Nil(t, dog.AssigneeID, "unknown member is cleared")
	assert.Zero(t, dog.Points)
	assert.False(t, dog.IsRecurring)
	assert.Empty(t, dog.RecurrencePattern)

	car := result.Tasks[2]
	assert.Nil(t, car.AssigneeID)
	assert.Empty(t, car.DueDate)

	assert.InDelta(t, 0.45, result.Confidence, 1e-9)
	assert.Equal(t, "Who should walk the dog?", result.Clarification)
}

func TestParseTasksFailures(t *testing.T) {
	env := newTestEnv(t)
	fam := newFamily(t, env)
	ctx := context.Background()

	_, err := newAssistant(env, &fakeCompleter{err: errors.New("boom")}).ParseTasks(ctx, fam.parent, "chores")
	assert.ErrorIs(t, err, ErrAIUnavailable)

	_, err = newAssistant(env, &fakeCompleter{reply: "not json"}).ParseTasks(ctx, fam.parent, "chores")
	assert.ErrorIs(t, err, ErrAIUnavailable)

	_, err = newAssistant(env, &fakeCompleter{reply: "{}"}).ParseTasks(ctx, fam.child, "chores")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = newAssistant(env, &fakeCompleter{reply: "{}"}).ParseTasks(ctx, fam.parent, "   ")
	assert.Error(t, err)
}

func TestConfidenceIsClamped(t *testing.T) {
	r := &ParseResult{Confidence: 3}
	sanitizeResult(r, nil, nil)
	assert.Equal(t, 1.0, r.Confidence)

	r = &ParseResult{Confidence: -1}
	sanitizeResult(r, nil, nil)
	assert.Equal(t, 0.0, r.Confidence)
}

func TestCreateFromDrafts(t *testing.T) {
	env := newTestEnv(t)
	fam := newFamily(t, env)
	assistant := newAssistant(env, &fakeCompleter{})
	ctx := context.Background()

	tasks, err := assistant.CreateFromDrafts(ctx, fam.parent, []TaskDraft{
		{Title: "Vacuum", Points: 4, AssigneeID: int64p(fam.child.UserID), DueDate: "2024-01-05"},
		{Title: "Mystery bonus", Points: 9, IsBonusTask: true},
	})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, models.TaskPending, tasks[0].Status)
	assert.Equal(t, models.TaskAvailable, tasks[1].Status)

	_, err = assistant.CreateFromDrafts(ctx, fam.child, []TaskDraft{{Title: "x"}})
	assert.ErrorIs(t, err, ErrForbidden)

	created, err := assistant.CreateFromDrafts(ctx, fam.parent, []TaskDraft{
		{Title: "Fine", AssigneeID: int64p(fam.child.UserID)},
		{Title: "Missing assignee"},
	})
	assert.Error(t, err)
	assert.Len(t, created, 1)
}
