package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Stevencedor/EasyLoans/internal/api/handler/dto"
	"github.com/Stevencedor/EasyLoans/internal/domain/user"
	"github.com/Stevencedor/EasyLoans/internal/pkg/apperrors"
)

type UserHandler struct {
	service user.UserService
	logger  *slog.Logger
}

func NewUserHandler(s user.UserService, l *slog.Logger) *UserHandler {
	return &UserHandler{
		service: s,
		logger:  l.With("component", "UserHandler"),
	}
}

func getUserIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "userID")
	if idStr == "" {
		return 0, fmt.Errorf("userID not found in URL path")
	}
	return strconv.ParseInt(idStr, 10, 64)
}

// CreateUser registers a new borrower account.
//
// @Summary Create a user
// @Description Registers a user with an auto-generated initial password that must be changed on first login. Admin only.
// @Tags Users
// @Accept json
// @Produce json
// @Param request body dto.CreateUserRequest true "User creation request payload"
// @Success 201 {object} dto.UserResponse "User successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 409 {object} dto.ErrorResponse "Username already taken"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /users [post]
// @Security BearerAuth
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	created, err := h.service.CreateUser(r.Context(), req.Username, req.Name, req.Email, req.Phone, req.CodebtorID, req.PreferredLanguage)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewUserResponse(created))
}

// ListUsers returns every registered user.
//
// @Summary List users
// @Tags Users
// @Produce json
// @Success 200 {array} dto.UserResponse "Users successfully retrieved"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /users [get]
// @Security BearerAuth
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.UserResponse, len(users))
	for i, u := range users {
		resp[i] = dto.NewUserResponse(u)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetUser retrieves a single user by ID.
//
// @Summary Retrieve user details
// @Tags Users
// @Produce json
// @Param userID path int true "User ID"
// @Success 200 {object} dto.UserResponse "User details successfully retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid user ID"
// @Failure 404 {object} dto.ErrorResponse "User not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /users/{userID} [get]
// @Security BearerAuth
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewUserResponse(u))
}

// ResetPassword issues a temporary password for a user.
//
// @Summary Reset a user's password
// @Description Replaces the user's password with a random temporary one and flags the account for a mandatory change. The temporary password is returned exactly once. Admin only.
// @Tags Users
// @Produce json
// @Param userID path int true "User ID"
// @Success 200 {object} dto.ResetPasswordResponse "Temporary password issued"
// @Failure 400 {object} dto.ErrorResponse "Invalid user ID"
// @Failure 404 {object} dto.ErrorResponse "User not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /users/{userID}/password/reset [post]
// @Security BearerAuth
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	tempPassword, err := h.service.ResetPassword(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ResetPasswordResponse{TemporaryPassword: tempPassword})
}

// UpdateLanguage changes a user's preferred language.
//
// @Summary Update a user's preferred language
// @Tags Users
// @Accept json
// @Produce json
// @Param userID path int true "User ID"
// @Param request body dto.UpdateLanguageRequest true "Preferred language"
// @Success 204 "Language successfully updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 404 {object} dto.ErrorResponse "User not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /users/{userID}/language [put]
// @Security BearerAuth
func (h *UserHandler) UpdateLanguage(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	var req dto.UpdateLanguageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	if err := h.service.UpdatePreferredLanguage(r.Context(), userID, req.PreferredLanguage); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
