package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"chorechart/internal/credentials"
	"chorechart/internal/database"
	"chorechart/internal/models"
	"chorechart/internal/repository"
	"chorechart/internal/security"
	"chorechart/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
)

// Account types accepted at registration
const (
	AccountParent = "PARENT"
	AccountChild  = "CHILD"
)

// RegisterInput is a self-service sign-up request
type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	FamilyCode  string `json:"familyCode"`
	AccountType string `json:"accountType"`
}

// AuthService handles authentication business logic
type AuthService struct {
	db              *database.DB
	userRepo        *repository.UserRepository
	familyRepo      *repository.FamilyRepository
	tokens          *security.TokenIssuer
	notifications   *NotificationService
	logger          *zap.Logger
	sessionDuration time.Duration
	now             func() time.Time
}

// NewAuthService creates a new auth service. notifications may be nil.
func NewAuthService(
	db *database.DB,
	userRepo *repository.UserRepository,
	familyRepo *repository.FamilyRepository,
	tokens *security.TokenIssuer,
	notifications *NotificationService,
	logger *zap.Logger,
	sessionDuration time.Duration,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		db:              db,
		userRepo:        userRepo,
		familyRepo:      familyRepo,
		tokens:          tokens,
		notifications:   notifications,
		logger:          logger,
		sessionDuration: sessionDuration,
		now:             time.Now,
	}
}

// Register creates an account and either joins the family named by the code
// or, for a parent without a code, creates a new family.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, *models.FamilyMember, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if in.AccountType == "" {
		in.AccountType = AccountParent
	}

	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidateName(in.Name); err != nil {
		return nil, nil, err
	}
	if in.AccountType != AccountParent && in.AccountType != AccountChild {
		return nil, nil, validation.Invalid("accountType", "must be PARENT or CHILD")
	}
	if in.AccountType == AccountChild && strings.TrimSpace(in.FamilyCode) == "" {
		return nil, nil, validation.Invalid("familyCode", "children must join with a family code")
	}

	existing, err := s.userRepo.GetUserByEmail(in.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var (
		user   *models.User
		member *models.FamilyMember
	)
	err = s.db.WithTx(func(tx *database.Tx) error {
		var err error
		user, err = s.userRepo.WithTx(tx).CreateUser(in.Email, passwordHash, in.Name)
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrEmailTaken
		}
		if err != nil {
			return err
		}
		member, err = s.joinOrCreateFamily(tx, user, in.AccountType, in.FamilyCode)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("User registered",
		zap.Int64("user_id", user.ID),
		zap.Int64("family_id", member.FamilyID),
		zap.String("role", string(member.Role)),
	)
	s.sendWelcome(ctx, user)
	return user, member, nil
}

func (s *AuthService) joinOrCreateFamily(tx *database.Tx, user *models.User, accountType, familyCode string) (*models.FamilyMember, error) {
	families := s.familyRepo.WithTx(tx)

	if code := credentials.NormalizeFamilyCode(familyCode); code != "" {
		family, err := families.GetFamilyByCode(code)
		if err != nil {
			return nil, fmt.Errorf("failed to check family code: %w", err)
		}
		if family == nil {
			return nil, validation.Invalid("familyCode", "invalid family code")
		}
		role := models.RoleParent
		if accountType == AccountChild {
			role = models.RoleChild
		}
		return families.AddMember(family.ID, user.ID, role)
	}

	var family *models.Family
	err := withFamilyCode(func(code string) error {
		var err error
		family, err = families.CreateFamily(user.Name+"'s Family", code)
		return err
	})
	if err != nil {
		return nil, err
	}
	return families.AddMember(family.ID, user.ID, models.RoleAdminParent)
}

func (s *AuthService) sendWelcome(ctx context.Context, user *models.User) {
	if s.notifications == nil || user.Email == "" {
		return
	}
	body := fmt.Sprintf("Hi %s,\n\nWelcome to ChoreChart! Your account is ready.", user.Name)
	s.notifications.EnqueueEmail(ctx, user.Email, user.Name, "Welcome to ChoreChart", body)
}

// Authenticate checks an email and password pair
func (s *AuthService) Authenticate(email, password string) (*models.User, error) {
	user, err := s.userRepo.GetUserByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !security.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates a user and creates a session
func (s *AuthService) Login(email, password string) (*models.Session, *models.User, error) {
	user, err := s.Authenticate(email, password)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.CreateSession(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// CreateSession starts a new session for userID
func (s *AuthService) CreateSession(userID int64) (*models.Session, error) {
	expiresAt := s.now().UTC().Add(s.sessionDuration)
	session, err := s.userRepo.CreateSession(security.GenerateSessionID(), userID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// IssueToken authenticates a user and returns a bearer token for API clients
func (s *AuthService) IssueToken(email, password string) (string, time.Time, *models.User, error) {
	user, err := s.Authenticate(email, password)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", time.Time{}, nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, expiresAt, user, nil
}

// AuthenticateToken resolves a bearer token to its user
func (s *AuthService) AuthenticateToken(token string) (*models.User, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// ValidateSession checks if a session is valid and returns the associated user
func (s *AuthService) ValidateSession(sessionID string) (*models.User, error) {
	session, err := s.userRepo.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if !s.now().Before(session.ExpiresAt) {
		_ = s.userRepo.DeleteSession(sessionID)
		return nil, ErrSessionExpired
	}

	user, err := s.userRepo.GetUserByID(session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}
	return user, nil
}

// Logout invalidates a session
func (s *AuthService) Logout(sessionID string) error {
	if err := s.userRepo.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes expired sessions from the database
func (s *AuthService) CleanupExpiredSessions() (int64, error) {
	n, err := s.userRepo.DeleteExpiredSessions(s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return n, nil
}

// OAuthLogin authenticates or creates a user from a verified OAuth identity.
// A brand-new user joins the family named by familyCode or gets a new one.
func (s *AuthService) OAuthLogin(ctx context.Context, provider, subject, email, name, familyCode string) (*models.Session, *models.User, error) {
	if provider == "" || subject == "" {
		return nil, nil, errors.New("missing oauth provider information")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, err
	}

	user, err := s.userRepo.GetUserByOAuth(provider, subject)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lookup oauth user: %w", err)
	}

	if user == nil {
		existing, err := s.userRepo.GetUserByEmail(email)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check existing user: %w", err)
		}

		switch {
		case existing != nil && existing.OAuthProvider != "" && existing.OAuthProvider != provider:
			return nil, nil, ErrEmailTaken
		case existing != nil:
			if err := s.userRepo.LinkOAuthProvider(existing.ID, provider, subject); err != nil {
				return nil, nil, fmt.Errorf("failed to link oauth provider: %w", err)
			}
			user = existing
		default:
			if name == "" {
				name, _, _ = strings.Cut(email, "@")
			}
			err = s.db.WithTx(func(tx *database.Tx) error {
				var err error
				user, err = s.userRepo.WithTx(tx).CreateOAuthUser(email, name, provider, subject)
				if err != nil {
					return err
				}
				_, err = s.joinOrCreateFamily(tx, user, AccountParent, familyCode)
				return err
			})
			if err != nil {
				return nil, nil, err
			}
			s.sendWelcome(ctx, user)
		}
	}

	session, err := s.CreateSession(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// ResolveActor loads the family membership behind an authenticated user
func (s *AuthService) ResolveActor(userID int64) (models.Actor, error) {
	member, err := s.familyRepo.GetMembership(userID)
	if err != nil {
		return models.Actor{}, fmt.Errorf("failed to get membership: %w", err)
	}
	if member == nil {
		return models.Actor{}, ErrNoFamily
	}
	return models.Actor{UserID: userID, FamilyID: member.FamilyID, Role: member.Role}, nil
}
