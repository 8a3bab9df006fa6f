package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Stevencedor/EasyLoans/internal/api/handler/dto"
	mw "github.com/Stevencedor/EasyLoans/internal/api/middleware"
	"github.com/Stevencedor/EasyLoans/internal/config"
	"github.com/Stevencedor/EasyLoans/internal/domain/user"
	"github.com/Stevencedor/EasyLoans/internal/pkg/apperrors"
)

type AuthHandler struct {
	users  user.UserService
	cfg    config.AuthConfig
	logger *slog.Logger
}

func NewAuthHandler(users user.UserService, cfg config.AuthConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		cfg:    cfg,
		logger: logger.With("component", "AuthHandler"),
	}
}

// Login authenticates a user and issues a session token.
//
// @Summary Log in
// @Description Verifies the username/password pair and returns a signed bearer token plus the user profile.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.LoginResponse "Authentication succeeded"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 401 {object} dto.ErrorResponse "Incorrect username or password"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	token, err := h.issueToken(u)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to sign session token", "error", err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.LoginResponse{
		Token: token,
		User:  dto.NewUserResponse(u),
	})
}

// ChangePassword lets the authenticated user replace their own password.
//
// @Summary Change the caller's password
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body dto.ChangePasswordRequest true "Current and new password"
// @Success 204 "Password successfully changed"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or weak password"
// @Failure 401 {object} dto.ErrorResponse "Missing session or wrong current password"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/password [put]
// @Security BearerAuth
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	session, ok := mw.SessionFromContext(r.Context())
	if !ok {
		respondError(w, apperrors.ErrUnauthorized)
		return
	}

	var req dto.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	if err := h.users.ChangePassword(r.Context(), session.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) issueToken(u *user.User) (string, error) {
	expiry := h.cfg.TokenExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"userId":                 u.ID,
		"username":               u.Username,
		"isAdmin":                u.IsAdmin,
		"requiresPasswordChange": u.RequiresPasswordChange,
		"iat":                    now.Unix(),
		"exp":                    now.Add(expiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}
