package dto

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Stevencedor/EasyLoans/internal/domain/user"
)

type CreateUserRequest struct {
	Username          string `json:"username"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	CodebtorID        *int64 `json:"codebtorId"`
	PreferredLanguage string `json:"preferredLanguage"`
}

func (r *CreateUserRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if r.CodebtorID != nil && *r.CodebtorID <= 0 {
		return fmt.Errorf("codebtorId must be a positive number")
	}
	return nil
}

type UpdateLanguageRequest struct {
	PreferredLanguage string `json:"preferredLanguage"`
}

func (r *UpdateLanguageRequest) Validate() error {
	if strings.TrimSpace(r.PreferredLanguage) == "" {
		return fmt.Errorf("preferredLanguage cannot be empty")
	}
	return nil
}

type UserResponse struct {
	ID                     string    `json:"id"`
	Username               string    `json:"username"`
	Name                   string    `json:"name"`
	Email                  string    `json:"email,omitempty"`
	Phone                  string    `json:"phone,omitempty"`
	CodebtorID             *string   `json:"codebtorId,omitempty"`
	PreferredLanguage      string    `json:"preferredLanguage"`
	IsAdmin                bool      `json:"isAdmin"`
	IsNewUser              bool      `json:"isNewUser"`
	RequiresPasswordChange bool      `json:"requiresPasswordChange"`
	CreatedAt              time.Time `json:"createdAt"`
}

type ResetPasswordResponse struct {
	TemporaryPassword string `json:"temporaryPassword"`
}

func NewUserResponse(u *user.User) UserResponse {
	var codebtorID *string
	if u.CodebtorID != nil {
		s := strconv.FormatInt(*u.CodebtorID, 10)
		codebtorID = &s
	}

	return UserResponse{
		ID:                     strconv.FormatInt(u.ID, 10),
		Username:               u.Username,
		Name:                   u.Name,
		Email:                  u.Email,
		Phone:                  u.Phone,
		CodebtorID:             codebtorID,
		PreferredLanguage:      u.PreferredLanguage,
		IsAdmin:                u.IsAdmin,
		IsNewUser:              u.IsNewUser,
		RequiresPasswordChange: u.RequiresPasswordChange,
		CreatedAt:              u.CreatedAt,
	}
}
