package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Stevencedor/EasyLoans/internal/api/handler/dto"
	mw "github.com/Stevencedor/EasyLoans/internal/api/middleware"
	"github.com/Stevencedor/EasyLoans/internal/config"
	"github.com/Stevencedor/EasyLoans/internal/domain/user"
	"github.com/Stevencedor/EasyLoans/internal/pkg/apperrors"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) CreateUser(ctx context.Context, username, name, email, phone string, codebtorID *int64, preferredLanguage string) (*user.User, error) {
	args := m.Called(ctx, username, name, email, phone, codebtorID, preferredLanguage)
	if u, ok := args.Get(0).(*user.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) GetUser(ctx context.Context, userID int64) (*user.User, error) {
	args := m.Called(ctx, userID)
	if u, ok := args.Get(0).(*user.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]*user.User, error) {
	args := m.Called(ctx)
	if users, ok := args.Get(0).([]*user.User); ok {
		return users, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, username, password string) (*user.User, error) {
	args := m.Called(ctx, username, password)
	if u, ok := args.Get(0).(*user.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	args := m.Called(ctx, userID, currentPassword, newPassword)
	return args.Error(0)
}

func (m *MockUserService) ResetPassword(ctx context.Context, userID int64) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockUserService) UpdatePreferredLanguage(ctx context.Context, userID int64, language string) error {
	args := m.Called(ctx, userID, language)
	return args.Error(0)
}

func testHandlerUser() *user.User {
	return &user.User{
		ID:                7,
		Username:          "maria",
		Name:              "Maria",
		PreferredLanguage: "es",
		IsAdmin:           true,
		CreatedAt:         time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newAuthHandler(users user.UserService) *AuthHandler {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return NewAuthHandler(users, config.AuthConfig{
		Enabled:   true,
		JWTSecret: "test-secret",
	}, logger)
}

func TestAuthHandlerLogin(t *testing.T) {
	t.Run("issues a signed token on valid credentials", func(t *testing.T) {
		mockUsers := new(MockUserService)
		handler := newAuthHandler(mockUsers)

		mockUsers.On("Authenticate", mock.Anything, "maria", "maria2024!").Return(testHandlerUser(), nil)

		body := `{"username":"maria","password":"maria2024!"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Login(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.LoginResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "7", resp.User.ID)
		assert.Equal(t, "maria", resp.User.Username)

		parsed, err := jwt.Parse(resp.Token, func(t *jwt.Token) (interface{}, error) {
			return []byte("test-secret"), nil
		})
		assert.NoError(t, err)
		assert.True(t, parsed.Valid)
		claims, ok := parsed.Claims.(jwt.MapClaims)
		assert.True(t, ok)
		assert.Equal(t, float64(7), claims["userId"])
		assert.Equal(t, "maria", claims["username"])
		assert.Equal(t, true, claims["isAdmin"])
		mockUsers.AssertExpectations(t)
	})

	t.Run("returns unauthorized on wrong credentials", func(t *testing.T) {
		mockUsers := new(MockUserService)
		handler := newAuthHandler(mockUsers)

		mockUsers.On("Authenticate", mock.Anything, "maria", "nope").
			Return((*user.User)(nil), apperrors.ErrInvalidCredentials)

		body := `{"username":"maria","password":"nope"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var resp dto.ErrorResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "Incorrect username or password.", resp.Error.Message)
	})

	t.Run("rejects a payload with missing fields", func(t *testing.T) {
		mockUsers := new(MockUserService)
		handler := newAuthHandler(mockUsers)

		body := `{"username":"maria"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Login(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockUsers.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuthHandlerChangePassword(t *testing.T) {
	t.Run("changes the session user's password", func(t *testing.T) {
		mockUsers := new(MockUserService)
		handler := newAuthHandler(mockUsers)

		mockUsers.On("ChangePassword", mock.Anything, int64(7), "maria2024!", "sturdier-secret").Return(nil)

		body := `{"currentPassword":"maria2024!","newPassword":"sturdier-secret"}`
		req := httptest.NewRequest(http.MethodPut, "/auth/password", strings.NewReader(body))
		req = req.WithContext(mw.ContextWithSession(req.Context(), &mw.Session{UserID: 7, Username: "maria"}))
		rec := httptest.NewRecorder()

		handler.ChangePassword(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		mockUsers.AssertExpectations(t)
	})

	t.Run("rejects a request without a session", func(t *testing.T) {
		mockUsers := new(MockUserService)
		handler := newAuthHandler(mockUsers)

		body := `{"currentPassword":"maria2024!","newPassword":"sturdier-secret"}`
		req := httptest.NewRequest(http.MethodPut, "/auth/password", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.ChangePassword(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		mockUsers.AssertNotCalled(t, "ChangePassword", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects a short new password", func(t *testing.T) {
		mockUsers := new(MockUserService)
		handler := newAuthHandler(mockUsers)

		body := `{"currentPassword":"maria2024!","newPassword":"short"}`
		req := httptest.NewRequest(http.MethodPut, "/auth/password", strings.NewReader(body))
		req = req.WithContext(mw.ContextWithSession(req.Context(), &mw.Session{UserID: 7}))
		rec := httptest.NewRecorder()

		handler.ChangePassword(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockUsers.AssertNotCalled(t, "ChangePassword", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("maps a wrong current password to unauthorized", func(t *testing.T) {
		mockUsers := new(MockUserService)
		handler := newAuthHandler(mockUsers)

		mockUsers.On("ChangePassword", mock.Anything, int64(7), "wrong", "sturdier-secret").
			Return(apperrors.ErrInvalidCredentials)

		body := `{"currentPassword":"wrong","newPassword":"sturdier-secret"}`
		req := httptest.NewRequest(http.MethodPut, "/auth/password", strings.NewReader(body))
		req = req.WithContext(mw.ContextWithSession(req.Context(), &mw.Session{UserID: 7}))
		rec := httptest.NewRecorder()

		handler.ChangePassword(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
