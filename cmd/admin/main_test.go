package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAdminCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(dir, "admin.db"))
	t.Setenv("MIGRATIONS_PATH", "")

	_, err := execute(t, "migrate")
	require.NoError(t, err)

	out, err := execute(t, "recurring", "generate", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Created 0 recurring task(s)")

	backupPath := filepath.Join(dir, "exports", "backup.json")
	_, err = execute(t, "export", "--output", backupPath)
	require.NoError(t, err)

	raw, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "1", doc["version"])
	assert.Equal(t, "sqlite3", doc["database_type"])
}

func TestRecurringGenerateNeedsScope(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "admin.db"))
	generateAll = false
	generateFamilyID = 0
	for _, name := range []string{"all", "family-id"} {
		recurringGenerateCmd.Flags().Lookup(name).Changed = false
	}

	_, err := execute(t, "recurring", "generate")
	assert.Error(t, err)
}
