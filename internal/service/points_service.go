package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"chorechart/internal/database"
	"chorechart/internal/metrics"
	"chorechart/internal/models"
	"chorechart/internal/repository"
	"chorechart/internal/validation"
)

// PointsInput is a manual ledger adjustment made by a parent
type PointsInput struct {
	UserID int64  `json:"userId" validate:"required"`
	Points int    `json:"points" validate:"gt=0,max=100000"`
	Reason string `json:"reason" validate:"max=500"`
}

// PointsService reads and appends to the points ledger. Balances are always
// derived from the ledger rows.
type PointsService struct {
	db       *database.DB
	points   *repository.PointsRepository
	families *repository.FamilyRepository
	notifier Notifier
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewPointsService creates a points service
func NewPointsService(
	db *database.DB,
	points *repository.PointsRepository,
	families *repository.FamilyRepository,
	notifier Notifier,
	logger *zap.Logger,
	m *metrics.Metrics,
) *PointsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PointsService{
		db:       db,
		points:   points,
		families: families,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// CurrentBalance returns the ledger sum for a user within a family
func (s *PointsService) CurrentBalance(userID, familyID int64) (int, error) {
	return s.points.Balance(userID, familyID)
}

// Balance returns userID's balance. Children may only read their own.
func (s *PointsService) Balance(actor models.Actor, userID int64) (int, error) {
	if err := s.canRead(actor, userID); err != nil {
		return 0, err
	}
	return s.points.Balance(userID, actor.FamilyID)
}

// AddBonus credits points to a family member
func (s *PointsService) AddBonus(ctx context.Context, actor models.Actor, in PointsInput) (*models.PointsEntry, int, error) {
	if err := s.checkAdjustment(actor, &in); err != nil {
		return nil, 0, err
	}
	if in.Reason == "" {
		in.Reason = "Bonus points"
	}

	entry := s.entry(actor, in.UserID, in.Points, in.Reason)
	if err := s.points.Append(entry); err != nil {
		return nil, 0, err
	}
	s.metrics.LedgerEntry("bonus")

	balance, err := s.points.Balance(in.UserID, actor.FamilyID)
	if err != nil {
		return nil, 0, err
	}

	s.notify(ctx, models.NotifyPointsAdded, "Points added", fmt.Sprintf("You received %d points: %s", in.Points, in.Reason), in.UserID)
	return entry, balance, nil
}

// Deduct removes points from a family member. The balance check and the
// insert share one transaction; a deduction larger than the balance is
// rejected with ErrInsufficientPoints.
func (s *PointsService) Deduct(ctx context.Context, actor models.Actor, in PointsInput) (*models.PointsEntry, int, error) {
	if err := s.checkAdjustment(actor, &in); err != nil {
		return nil, 0, err
	}
	if in.Reason == "" {
		in.Reason = "Points deducted"
	}

	entry := s.entry(actor, in.UserID, -in.Points, in.Reason)
	var balance int
	err := s.db.WithTx(func(tx *database.Tx) error {
		points := s.points.WithTx(tx)
		current, err := points.Balance(in.UserID, actor.FamilyID)
		if err != nil {
			return err
		}
		if in.Points > current {
			return ErrInsufficientPoints
		}
		if err := points.Append(entry); err != nil {
			return err
		}
		balance = current - in.Points
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	s.metrics.LedgerEntry("deduct")

	s.notify(ctx, models.NotifyPointsDeducted, "Points deducted", fmt.Sprintf("%d points were deducted: %s", in.Points, in.Reason), in.UserID)
	return entry, balance, nil
}

// History returns userID's ledger with a running balance, oldest first
func (s *PointsService) History(actor models.Actor, userID int64) ([]models.PointsHistoryEntry, error) {
	if err := s.canRead(actor, userID); err != nil {
		return nil, err
	}
	entries, err := s.points.History(userID, actor.FamilyID)
	if err != nil {
		return nil, err
	}
	return withRunningBalance(entries), nil
}

// FamilyHistory returns the whole family ledger. Each entry's running
// balance is that member's balance after the entry.
func (s *PointsService) FamilyHistory(actor models.Actor) ([]models.PointsHistoryEntry, error) {
	if !actor.Role.IsParent() {
		return nil, ErrForbidden
	}
	entries, err := s.points.FamilyHistory(actor.FamilyID)
	if err != nil {
		return nil, err
	}
	return withRunningBalance(entries), nil
}

// FamilyBalances returns every member's balance, highest first
func (s *PointsService) FamilyBalances(actor models.Actor) ([]models.MemberBalance, error) {
	return s.points.FamilyBalances(actor.FamilyID)
}

func withRunningBalance(entries []models.PointsEntry) []models.PointsHistoryEntry {
	running := make(map[int64]int)
	out := make([]models.PointsHistoryEntry, 0, len(entries))
	for _, e := range entries {
		running[e.UserID] += e.Points
		out = append(out, models.PointsHistoryEntry{PointsEntry: e, RunningBalance: running[e.UserID]})
	}
	return out
}

func (s *PointsService) canRead(actor models.Actor, userID int64) error {
	if userID == actor.UserID {
		return nil
	}
	if !actor.Role.IsParent() {
		return ErrForbidden
	}
	member, err := s.families.GetMember(actor.FamilyID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotFound
	}
	return nil
}

func (s *PointsService) checkAdjustment(actor models.Actor, in *PointsInput) error {
	if !models.CanManagePoints(actor.Role) {
		return ErrForbidden
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if err := validation.Struct(in); err != nil {
		return err
	}
	member, err := s.families.GetMember(actor.FamilyID, in.UserID)
	if err != nil {
		return err
	}
	if member == nil {
		return validation.Invalid("userId", "must be a member of your family")
	}
	return nil
}

func (s *PointsService) entry(actor models.Actor, userID int64, points int, reason string) *models.PointsEntry {
	return &models.PointsEntry{
		UserID:    userID,
		FamilyID:  actor.FamilyID,
		Points:    points,
		Reason:    reason,
		CreatedBy: actor.UserID,
		CreatedAt: s.now().UTC(),
	}
}

func (s *PointsService) notify(ctx context.Context, typ models.NotificationType, title, message string, userID int64) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(ctx, NotificationEvent{
		Type:       typ,
		Title:      title,
		Message:    message,
		Recipients: []int64{userID},
	})
}
