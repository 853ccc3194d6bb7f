package service

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"chorechart/internal/database"
	"chorechart/internal/models"
	"chorechart/internal/repository"
)

// BackupVersion is the format version written by Export
const BackupVersion = "1"

// BackupData is the complete export document. Password hashes and OAuth
// identities are never included.
type BackupData struct {
	Version      string                `json:"version"`
	ExportedAt   time.Time             `json:"exported_at"`
	DatabaseType string                `json:"database_type"`
	Users        []models.User         `json:"users"`
	Families     []models.Family       `json:"families"`
	Members      []models.FamilyMember `json:"members"`
	Tasks        []*models.Task        `json:"tasks"`
	Ledger       []models.PointsEntry  `json:"ledger"`
	Tags         []models.TaskTag      `json:"tags"`
}

// BackupService exports the database as JSON
type BackupService struct {
	db     *database.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, logger *zap.Logger) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{db: db, logger: logger, now: time.Now}
}

// Export writes every family, member, user, task, ledger entry and tag to w.
// All reads run in one transaction so the document is consistent.
func (s *BackupService) Export(w io.Writer) (*BackupData, error) {
	backup := &BackupData{
		Version:      BackupVersion,
		ExportedAt:   s.now().UTC(),
		DatabaseType: s.db.Dialect.DriverName(),
	}

	err := s.db.WithTx(func(tx *database.Tx) error {
		var err error
		if backup.Users, err = repository.NewUserRepository(tx).GetAllUsers(); err != nil {
			return err
		}
		families := repository.NewFamilyRepository(tx)
		if backup.Families, err = families.GetAllFamilies(); err != nil {
			return err
		}
		if backup.Members, err = families.GetAllMembers(); err != nil {
			return err
		}
		if backup.Tasks, err = repository.NewTaskRepository(tx).GetAllTasks(); err != nil {
			return err
		}
		if backup.Ledger, err = repository.NewPointsRepository(tx).GetAllEntries(); err != nil {
			return err
		}
		backup.Tags, err = repository.NewTagRepository(tx).GetAllTags()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read backup data: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}

	s.logger.Info("Backup exported",
		zap.Int("users", len(backup.Users)),
		zap.Int("families", len(backup.Families)),
		zap.Int("tasks", len(backup.Tasks)),
		zap.Int("ledger_entries", len(backup.Ledger)),
	)
	return backup, nil
}
