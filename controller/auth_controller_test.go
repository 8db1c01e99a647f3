// controller/auth_controller_test.go
package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	testify_mock "github.com/stretchr/testify/mock"

	apierrors "github.com/taskhive/api/errors"
	"github.com/taskhive/api/model"
	"github.com/taskhive/api/test/mock"
)

func setupAuthController(t *testing.T) (*mock.MockAuthService, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	authService := new(mock.MockAuthService)
	r := gin.New()
	NewAuthController(authService).RegisterPublicRoutes(r)
	return authService, r
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegister_Created(t *testing.T) {
	authService, r := setupAuthController(t)
	user := &model.User{ID: "u1", Username: "alice", Role: model.RoleMember}
	pair := &model.TokenPair{AccessToken: "at", RefreshToken: "rt"}
	authService.On("Register", testify_mock.Anything, testify_mock.AnythingOfType("model.User"), "s3cretpass").
		Return(user, pair, nil)

	w := postJSON(r, "/auth/register", gin.H{
		"username": "alice", "password": "s3cretpass", "name": "Alice", "email": "alice@example.com",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"at"`)
	authService.AssertExpectations(t)
}

func TestRegister_Conflict(t *testing.T) {
	authService, r := setupAuthController(t)
	authService.On("Register", testify_mock.Anything, testify_mock.Anything, testify_mock.Anything).
		Return(nil, nil, apierrors.ErrUserConflict)

	w := postJSON(r, "/auth/register", gin.H{
		"username": "alice", "password": "s3cretpass", "name": "Alice", "email": "alice@example.com",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegister_MissingFields(t *testing.T) {
	authService, r := setupAuthController(t)

	w := postJSON(r, "/auth/register", gin.H{"username": "alice"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	authService.AssertNotCalled(t, "Register")
}

func TestLogin_OK(t *testing.T) {
	authService, r := setupAuthController(t)
	user := &model.User{ID: "u1", Username: "alice", Role: model.RoleMember}
	pair := &model.TokenPair{AccessToken: "at", RefreshToken: "rt"}
	authService.On("Login", testify_mock.Anything, "alice", "s3cretpass").Return(user, pair, nil)

	w := postJSON(r, "/auth/login", gin.H{"username": "alice", "password": "s3cretpass"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"refresh_token":"rt"`)
}

func TestLogin_BadPassword(t *testing.T) {
	authService, r := setupAuthController(t)
	authService.On("Login", testify_mock.Anything, "alice", "wrong").
		Return(nil, nil, apierrors.ErrInvalidCredentials)

	w := postJSON(r, "/auth/login", gin.H{"username": "alice", "password": "wrong"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefresh_OK(t *testing.T) {
	authService, r := setupAuthController(t)
	pair := &model.TokenPair{AccessToken: "at2", RefreshToken: "rt2"}
	authService.On("Refresh", testify_mock.Anything, "rt1").Return(pair, nil)

	w := postJSON(r, "/auth/refresh", gin.H{"refresh_token": "rt1"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"refresh_token":"rt2"`)
}

func TestRefresh_AlreadyRotated(t *testing.T) {
	authService, r := setupAuthController(t)
	authService.On("Refresh", testify_mock.Anything, "stale").
		Return(nil, apierrors.ErrTokenConflict)

	w := postJSON(r, "/auth/refresh", gin.H{"refresh_token": "stale"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRefresh_InvalidToken(t *testing.T) {
	authService, r := setupAuthController(t)
	authService.On("Refresh", testify_mock.Anything, "garbage").
		Return(nil, apierrors.ErrUnauthenticated)

	w := postJSON(r, "/auth/refresh", gin.H{"refresh_token": "garbage"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
