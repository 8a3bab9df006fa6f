package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/Stevencedor/EasyLoans/internal/pkg/apperrors"
)

type User struct {
	ID                     int64
	Username               string
	PasswordHash           string
	Name                   string
	Email                  string
	Phone                  string
	CodebtorID             *int64
	PreferredLanguage      string
	IsAdmin                bool
	IsNewUser              bool
	RequiresPasswordChange bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

const defaultLanguage = "es"

func NewUser(username, name, email, phone string, codebtorID *int64, preferredLanguage string) (*User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	name = strings.TrimSpace(name)

	if username == "" {
		return nil, fmt.Errorf("%w: username cannot be empty", apperrors.ErrValidation)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", apperrors.ErrValidation)
	}
	if preferredLanguage == "" {
		preferredLanguage = defaultLanguage
	}

	return &User{
		Username:          username,
		Name:              name,
		Email:             strings.TrimSpace(email),
		Phone:             strings.TrimSpace(phone),
		CodebtorID:        codebtorID,
		PreferredLanguage: preferredLanguage,
		IsNewUser:         true,
	}, nil
}
