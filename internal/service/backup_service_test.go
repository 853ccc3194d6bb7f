package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	fam := newFamily(t, env)
	ctx := context.Background()

	_, err := env.tagSvc.Create(fam.parent, CreateTagInput{Name: "Garden"})
	require.NoError(t, err)
	task := env.createTask(t, fam.parent, CreateTaskInput{Title: "Weed", Points: 3, AssignedTo: int64p(fam.child.UserID)})
	_, err = env.taskSvc.Complete(ctx, fam.child, task.ID)
	require.NoError(t, err)
	_, err = env.taskSvc.Verify(ctx, fam.parent, task.ID)
	require.NoError(t, err)

	var buf bytes.Buffer
	backup, err := NewBackupService(env.db, nil).Export(&buf)
	require.NoError(t, err)

	assert.Equal(t, BackupVersion, backup.Version)
	assert.Equal(t, "sqlite3", backup.DatabaseType)
	assert.Len(t, backup.Users, 3)
	assert.Len(t, backup.Families, 1)
	assert.Len(t, backup.Members, 3)
	assert.Len(t, backup.Tasks, 1)
	assert.Len(t, backup.Ledger, 1)
	assert.Len(t, backup.Tags, 1)

	assert.NotContains(t, buf.String(), "$2a$", "password hashes are never exported")

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	for _, key := range []string{"version", "exported_at", "users", "families", "members", "tasks", "ledger", "tags"} {
		assert.Contains(t, decoded, key)
	}
}
