// Package dbtest provides throwaway SQLite databases with the full schema applied.
package dbtest

import (
	"path/filepath"
	"testing"

	"chorechart/internal/database"
	"chorechart/migrations"
)

// New opens a migrated SQLite database in t.TempDir and closes it on cleanup.
func New(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "chorechart_test.db"))
	if err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(migrations.FS, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}
