package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"

	"github.com/Stevencedor/EasyLoans/internal/domain/user"
	"github.com/Stevencedor/EasyLoans/internal/pkg/apperrors"
)

var userColumnNames = []string{
	"id", "username", "password_hash", "name", "email", "phone", "codebtor_id",
	"preferred_language", "is_admin", "is_new_user", "requires_password_change",
	"created_at", "updated_at",
}

func setupUserRepo(t *testing.T) (context.Context, *UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}

	ctx := context.Background()
	repo := NewUserRepository(mockPool, logger)

	return ctx, repo, mockPool
}

func userRow(id int64, username string) *pgxmock.Rows {
	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(userColumnNames).AddRow(
		id, username, "$2a$10$hash", "Maria Perez", "maria@example.com", "",
		(*int64)(nil), "es", false, true, true, created, created,
	)
}

func TestUserRepositoryCreateUserWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupUserRepo(t)
	defer mockPool.Close()

	newUser := &user.User{
		Username:               "maria",
		PasswordHash:           "$2a$10$hash",
		Name:                   "Maria Perez",
		Email:                  "maria@example.com",
		PreferredLanguage:      "es",
		IsNewUser:              true,
		RequiresPasswordChange: true,
	}

	mockPool.ExpectQuery("INSERT INTO users").WithArgs(
		newUser.Username, newUser.PasswordHash, newUser.Name, newUser.Email, newUser.Phone,
		newUser.CodebtorID, newUser.PreferredLanguage, newUser.IsAdmin, newUser.IsNewUser,
		newUser.RequiresPasswordChange,
	).WillReturnRows(userRow(1, "maria"))

	created, err := repo.CreateUser(ctx, newUser)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "maria", created.Username)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUserRepositoryCreateUserWhenUsernameTaken(t *testing.T) {
	ctx, repo, mockPool := setupUserRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery("INSERT INTO users").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	_, err := repo.CreateUser(ctx, &user.User{Username: "maria", Name: "Maria Perez"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUserRepositoryGetUserByUsernameWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupUserRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery("SELECT(.|\n)*FROM users WHERE username = \\$1").
		WithArgs("maria").
		WillReturnRows(userRow(1, "maria"))

	u, err := repo.GetUserByUsername(ctx, "maria")
	assert.NoError(t, err)
	assert.Equal(t, "maria", u.Username)
	assert.True(t, u.RequiresPasswordChange)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUserRepositoryGetUserByIDWhenNotFound(t *testing.T) {
	ctx, repo, mockPool := setupUserRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery("SELECT(.|\n)*FROM users WHERE id = \\$1").
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetUserByID(ctx, 42)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUserRepositoryListUsersWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupUserRepo(t)
	defer mockPool.Close()

	rows := userRow(1, "maria")
	created := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	rows.AddRow(int64(2), "jose", "$2a$10$other", "Jose Gomez", "", "",
		(*int64)(nil), "es", true, false, false, created, created)

	mockPool.ExpectQuery("SELECT(.|\n)*FROM users ORDER BY id ASC").WillReturnRows(rows)

	users, err := repo.ListUsers(ctx)
	assert.NoError(t, err)
	assert.Len(t, users, 2)
	assert.True(t, users[1].IsAdmin)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUserRepositoryUpdatePasswordWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupUserRepo(t)
	defer mockPool.Close()

	query := `
        UPDATE users
        SET password_hash = $1, requires_password_change = $2, updated_at = NOW()
        WHERE id = $3`

	mockPool.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs("$2a$10$newhash", false, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.UpdatePassword(ctx, 1, "$2a$10$newhash", false))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUserRepositoryUpdatePasswordWhenUserMissing(t *testing.T) {
	ctx, repo, mockPool := setupUserRepo(t)
	defer mockPool.Close()

	mockPool.ExpectExec("UPDATE users").
		WithArgs("$2a$10$newhash", true, int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdatePassword(ctx, 9, "$2a$10$newhash", true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUserRepositoryUpdatePreferredLanguageWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupUserRepo(t)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE users SET preferred_language = $1, updated_at = NOW() WHERE id = $2`)).
		WithArgs("en", int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.UpdatePreferredLanguage(ctx, 1, "en"))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUserRepositoryClearNewUserFlagWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupUserRepo(t)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE users SET is_new_user = FALSE, updated_at = NOW() WHERE id = $1`)).
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.ClearNewUserFlag(ctx, 1))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}
