package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssistantParseAndCreate(t *testing.T) {
	env := newAPIEnv(t, envOptions{})
	fam := env.newFamily(t)
	env.completer.reply = fmt.Sprintf(`{"tasks":[{"title":"Take out the trash","points":5,"assigneeId":%d}],"confidence":0.9}`, fam.childID)

	rec := env.do(t, fam.parent, http.MethodPost, "/api/ai/parse-tasks", map[string]string{"text": "Kim should take out the trash for 5 points"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var parsed struct {
		Tasks []struct {
			Title      string `json:"title"`
			Points     int    `json:"points"`
			AssigneeID *int64 `json:"assigneeId"`
		} `json:"tasks"`
		Confidence float64 `json:"confidence"`
	}
	decodeEnvelope(t, rec, &parsed)
	require.Len(t, parsed.Tasks, 1)
	assert.Equal(t, "Take out the trash", parsed.Tasks[0].Title)
	require.NotNil(t, parsed.Tasks[0].AssigneeID)
	assert.InDelta(t, 0.9, parsed.Confidence, 1e-9)

	rec = env.do(t, fam.parent, http.MethodPost, "/api/ai/create-tasks", map[string]interface{}{"tasks": parsed.Tasks})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created []taskBody
	decodeEnvelope(t, rec, &created)
	require.Len(t, created, 1)
	assert.Equal(t, "PENDING", created[0].Status)
	assert.Equal(t, 5, created[0].Points)
}

func TestAssistantErrors(t *testing.T) {
	env := newAPIEnv(t, envOptions{})
	fam := env.newFamily(t)

	env.completer.err = errors.New("upstream timeout")
	rec := env.do(t, fam.parent, http.MethodPost, "/api/ai/parse-tasks", map[string]string{"text": "dishes tonight"})
	requireErrorCode(t, rec, http.StatusServiceUnavailable, CodeAIUnavailable)
	assert.NotContains(t, rec.Body.String(), "upstream timeout")

	rec = env.do(t, fam.child, http.MethodPost, "/api/ai/parse-tasks", map[string]string{"text": "dishes tonight"})
	requireErrorCode(t, rec, http.StatusForbidden, CodeForbidden)

	rec = env.do(t, fam.parent, http.MethodPost, "/api/ai/create-tasks", map[string]interface{}{"tasks": []interface{}{}})
	requireErrorCode(t, rec, http.StatusBadRequest, CodeValidation)
}
