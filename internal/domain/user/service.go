package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Stevencedor/EasyLoans/internal/infrastructure/monitoring"
	"github.com/Stevencedor/EasyLoans/internal/pkg/apperrors"
)

type UserService interface {
	CreateUser(ctx context.Context, username, name, email, phone string, codebtorID *int64, preferredLanguage string) (*User, error)

	GetUser(ctx context.Context, userID int64) (*User, error)

	ListUsers(ctx context.Context) ([]*User, error)

	// Authenticate verifies the username/password pair and returns the user
	// on success. It returns ErrInvalidCredentials for unknown usernames and
	// wrong passwords alike.
	Authenticate(ctx context.Context, username, password string) (*User, error)

	ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error

	// ResetPassword replaces the user's password with a random temporary one
	// and flags the account for a mandatory change. The temporary password is
	// returned in the clear exactly once.
	ResetPassword(ctx context.Context, userID int64) (string, error)

	UpdatePreferredLanguage(ctx context.Context, userID int64, language string) error
}

var _ UserService = (*userService)(nil)

type userService struct {
	repo   Repository
	logger *slog.Logger
}

func NewUserService(repo Repository, logger *slog.Logger) UserService {
	if repo == nil {
		panic("user repository cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewUserService, using default stderr handler")
	}

	return &userService{
		repo:   repo,
		logger: logger.With(slog.String("component", "userService")),
	}
}

func (s *userService) CreateUser(ctx context.Context, username, name, email, phone string, codebtorID *int64, preferredLanguage string) (*User, error) {
	s.logger.InfoContext(ctx, "Attempting to create new user")

	u, err := NewUser(username, name, email, phone, codebtorID, preferredLanguage)
	if err != nil {
		s.logger.WarnContext(ctx, "User validation failed", slog.Any("error", err))
		return nil, err
	}

	hash, err := HashPassword(InitialPassword(u.Username, time.Now()))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to hash initial password", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInternalServer, err)
	}
	u.PasswordHash = hash
	u.RequiresPasswordChange = true

	created, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			s.logger.WarnContext(ctx, "Username already taken", slog.String("username", u.Username))
			return nil, fmt.Errorf("%w: username %q is taken", apperrors.ErrAlreadyExists, u.Username)
		}
		s.logger.ErrorContext(ctx, "Failed to persist user", slog.Any("error", err))
		return nil, err
	}

	s.logger.InfoContext(ctx, "User created", slog.Int64("userID", created.ID))
	return created, nil
}

func (s *userService) GetUser(ctx context.Context, userID int64) (*User, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "User not found", slog.Int64("userID", userID))
			return nil, fmt.Errorf("%w: user %d not found", apperrors.ErrNotFound, userID)
		}
		s.logger.ErrorContext(ctx, "Failed to get user", slog.Int64("userID", userID), slog.Any("error", err))
		return nil, err
	}
	return u, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		return nil, err
	}
	return users, nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Login attempt for unknown username")
			monitoring.RecordLoginAttempt("failure")
			return nil, apperrors.ErrInvalidCredentials
		}
		s.logger.ErrorContext(ctx, "Failed to look up user for login", slog.Any("error", err))
		return nil, err
	}

	if !VerifyPassword(u.PasswordHash, password) {
		s.logger.WarnContext(ctx, "Login attempt with wrong password", slog.Int64("userID", u.ID))
		monitoring.RecordLoginAttempt("failure")
		return nil, apperrors.ErrInvalidCredentials
	}

	monitoring.RecordLoginAttempt("success")
	s.logger.InfoContext(ctx, "User authenticated", slog.Int64("userID", u.ID))
	return u, nil
}

func (s *userService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: new password must be at least 8 characters", apperrors.ErrValidation)
	}

	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if !VerifyPassword(u.PasswordHash, currentPassword) {
		s.logger.WarnContext(ctx, "Password change with wrong current password", slog.Int64("userID", userID))
		return apperrors.ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInternalServer, err)
	}

	if err := s.repo.UpdatePassword(ctx, userID, hash, false); err != nil {
		s.logger.ErrorContext(ctx, "Failed to update password", slog.Int64("userID", userID), slog.Any("error", err))
		return err
	}

	if u.IsNewUser {
		if err := s.repo.ClearNewUserFlag(ctx, userID); err != nil {
			s.logger.WarnContext(ctx, "Failed to clear new-user flag", slog.Int64("userID", userID), slog.Any("error", err))
		}
	}

	s.logger.InfoContext(ctx, "Password changed", slog.Int64("userID", userID))
	return nil
}

func (s *userService) ResetPassword(ctx context.Context, userID int64) (string, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return "", err
	}

	tempPassword, err := GenerateTemporaryPassword()
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to generate temporary password", slog.Any("error", err))
		return "", fmt.Errorf("%w: %v", apperrors.ErrInternalServer, err)
	}

	hash, err := HashPassword(tempPassword)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrInternalServer, err)
	}

	if err := s.repo.UpdatePassword(ctx, userID, hash, true); err != nil {
		s.logger.ErrorContext(ctx, "Failed to store reset password", slog.Int64("userID", userID), slog.Any("error", err))
		return "", err
	}

	s.logger.InfoContext(ctx, "Password reset", slog.Int64("userID", userID))
	return tempPassword, nil
}

func (s *userService) UpdatePreferredLanguage(ctx context.Context, userID int64, language string) error {
	if language == "" {
		return fmt.Errorf("%w: language cannot be empty", apperrors.ErrValidation)
	}
	if err := s.repo.UpdatePreferredLanguage(ctx, userID, language); err != nil {
		s.logger.ErrorContext(ctx, "Failed to update preferred language", slog.Int64("userID", userID), slog.Any("error", err))
		return err
	}
	return nil
}
