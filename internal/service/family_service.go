package service

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chorechart/internal/credentials"
	"chorechart/internal/database"
	"chorechart/internal/models"
	"chorechart/internal/repository"
	"chorechart/internal/security"
	"chorechart/internal/validation"
)

const familyCodeAttempts = 5

// FamilyService handles family membership and member preferences
type FamilyService struct {
	db       *database.DB
	families *repository.FamilyRepository
	users    *repository.UserRepository
	logger   *zap.Logger
}

// NewFamilyService creates a new family service
func NewFamilyService(db *database.DB, families *repository.FamilyRepository, users *repository.UserRepository, logger *zap.Logger) *FamilyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FamilyService{
		db:       db,
		families: families,
		users:    users,
		logger:   logger,
	}
}

// AddChildInput describes a child account created by a parent
type AddChildInput struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// PreferencesInput is a member's requested notification settings
type PreferencesInput struct {
	Phone       string `json:"phone" validate:"omitempty,e164"`
	NotifyInApp bool   `json:"notifyInApp"`
	NotifySMS   bool   `json:"notifySms"`
	NotifyEmail bool   `json:"notifyEmail"`
}

// withFamilyCode calls create with fresh codes until it stops reporting a
// duplicate.
func withFamilyCode(create func(code string) error) error {
	for i := 0; i < familyCodeAttempts; i++ {
		code, err := credentials.GenerateFamilyCode()
		if err != nil {
			return fmt.Errorf("failed to generate family code: %w", err)
		}
		err = create(code)
		if !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
	}
	return errors.New("failed to generate a unique family code")
}

// GetFamily returns the actor's family
func (s *FamilyService) GetFamily(actor models.Actor) (*models.Family, error) {
	family, err := s.families.GetFamilyByID(actor.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	if family == nil {
		return nil, ErrNotFound
	}
	return family, nil
}

// ListMembers lists every member of the actor's family
func (s *FamilyService) ListMembers(actor models.Actor) ([]models.MemberWithUser, error) {
	members, err := s.families.ListMembers(actor.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// RegenerateCode issues a new join code. Admin parents only.
func (s *FamilyService) RegenerateCode(actor models.Actor) (*models.Family, error) {
	if !models.CanManageFamily(actor.Role) {
		return nil, ErrForbidden
	}

	err := withFamilyCode(func(code string) error {
		return s.families.UpdateFamilyCode(actor.FamilyID, code)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Family code regenerated", zap.Int64("family_id", actor.FamilyID), zap.Int64("user_id", actor.UserID))
	return s.GetFamily(actor)
}

// AddChild creates a child account and adds it to the actor's family
func (s *FamilyService) AddChild(actor models.Actor, in AddChildInput) (*models.MemberWithUser, error) {
	if !actor.Role.IsParent() {
		return nil, ErrForbidden
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var result *models.MemberWithUser
	err = s.db.WithTx(func(tx *database.Tx) error {
		user, err := s.users.WithTx(tx).CreateUser(in.Email, hash, in.Name)
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrEmailTaken
		}
		if err != nil {
			return err
		}
		member, err := s.families.WithTx(tx).AddMember(actor.FamilyID, user.ID, models.RoleChild)
		if err != nil {
			return err
		}
		result = &models.MemberWithUser{FamilyMember: *member, Name: user.Name, Email: user.Email}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveMember removes a member from the family. Admin parents only, and
// never themselves.
func (s *FamilyService) RemoveMember(actor models.Actor, userID int64) error {
	if !models.CanManageFamily(actor.Role) {
		return ErrForbidden
	}
	if userID == actor.UserID {
		return validation.Invalid("userId", "you cannot remove yourself")
	}

	removed, err := s.families.RemoveMember(actor.FamilyID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

// UpdatePreferences stores the actor's own notification settings
func (s *FamilyService) UpdatePreferences(actor models.Actor, in PreferencesInput) (*models.User, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.NotifySMS && in.Phone == "" {
		return nil, validation.Invalid("phone", "is required for SMS notifications")
	}

	prefs := models.NotificationPreferences{
		Phone:       in.Phone,
		NotifyInApp: in.NotifyInApp,
		NotifySMS:   in.NotifySMS,
		NotifyEmail: in.NotifyEmail,
	}
	if err := s.users.UpdatePreferences(actor.UserID, prefs); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}
