package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Stevencedor/EasyLoans/internal/domain/user"
	"github.com/Stevencedor/EasyLoans/internal/infrastructure/monitoring"
	"github.com/Stevencedor/EasyLoans/internal/pkg/apperrors"
)

const userColumns = `id, username, password_hash, name, email, phone, codebtor_id,
       preferred_language, is_admin, is_new_user, requires_password_change, created_at, updated_at`

type UserRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewUserRepository(db DBPool, logger *slog.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger.With("component", "UserRepository")}
}

func (r *UserRepository) CreateUser(ctx context.Context, u *user.User) (*user.User, error) {
	sql := `
        INSERT INTO users (username, password_hash, name, email, phone, codebtor_id,
            preferred_language, is_admin, is_new_user, requires_password_change, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
        RETURNING ` + userColumns

	var created user.User
	err := r.db.QueryRow(ctx, sql,
		u.Username, u.PasswordHash, u.Name, u.Email, u.Phone, u.CodebtorID,
		u.PreferredLanguage, u.IsAdmin, u.IsNewUser, u.RequiresPasswordChange,
	).Scan(userFields(&created)...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert user", "error", err)
		return nil, translateDBError(err, r.logger)
	}

	r.logger.InfoContext(ctx, "User created in DB", "user_id", created.ID)
	return &created, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, userID int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getUser(ctx, "GetUserByID", query, userID)
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.getUser(ctx, "GetUserByUsername", query, username)
}

func (r *UserRepository) getUser(ctx context.Context, queryName, query string, arg any) (*user.User, error) {
	status := "success"
	startTime := time.Now()

	var u user.User
	err := r.db.QueryRow(ctx, query, arg).Scan(userFields(&u)...)

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery(queryName, status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "User not found", "query", queryName)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get user", "query", queryName, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &u, nil
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query users", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	users := make([]*user.User, 0)
	for rows.Next() {
		var u user.User
		if err := rows.Scan(userFields(&u)...); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan user row", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		users = append(users, &u)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating user rows", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return users, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string, requiresChange bool) error {
	sql := `
        UPDATE users
        SET password_hash = $1, requires_password_change = $2, updated_at = NOW()
        WHERE id = $3`

	cmdTag, err := r.db.Exec(ctx, sql, passwordHash, requiresChange, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update password", "user_id", userID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return fmt.Errorf("%w: user %d not found", apperrors.ErrNotFound, userID)
	}
	return nil
}

func (r *UserRepository) UpdatePreferredLanguage(ctx context.Context, userID int64, language string) error {
	sql := `UPDATE users SET preferred_language = $1, updated_at = NOW() WHERE id = $2`

	cmdTag, err := r.db.Exec(ctx, sql, language, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update preferred language", "user_id", userID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return fmt.Errorf("%w: user %d not found", apperrors.ErrNotFound, userID)
	}
	return nil
}

func (r *UserRepository) ClearNewUserFlag(ctx context.Context, userID int64) error {
	sql := `UPDATE users SET is_new_user = FALSE, updated_at = NOW() WHERE id = $1`

	cmdTag, err := r.db.Exec(ctx, sql, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to clear new-user flag", "user_id", userID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return fmt.Errorf("%w: user %d not found", apperrors.ErrNotFound, userID)
	}
	return nil
}

func userFields(u *user.User) []any {
	return []any{
		&u.ID, &u.Username, &u.PasswordHash, &u.Name, &u.Email, &u.Phone, &u.CodebtorID,
		&u.PreferredLanguage, &u.IsAdmin, &u.IsNewUser, &u.RequiresPasswordChange,
		&u.CreatedAt, &u.UpdatedAt,
	}
}
