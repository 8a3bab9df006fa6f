package user

import (
	"context"
)

type Repository interface {
	CreateUser(ctx context.Context, u *User) (*User, error)

	GetUserByID(ctx context.Context, userID int64) (*User, error)

	GetUserByUsername(ctx context.Context, username string) (*User, error)

	ListUsers(ctx context.Context) ([]*User, error)

	UpdatePassword(ctx context.Context, userID int64, passwordHash string, requiresChange bool) error

	UpdatePreferredLanguage(ctx context.Context, userID int64, language string) error

	ClearNewUserFlag(ctx context.Context, userID int64) error
}
