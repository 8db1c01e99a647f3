// middleware/auth_test.go
package middleware

import (
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

func setupAuthRouter(t *testing.T, tokens *mock.MockTokenVerifier, users *mock.MockSubjectChecker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewAuthMiddleware(tokens, users).Handler())
	r.GET("/protected", func(c *gin.Context) {
		auth, ok := GetRequestAuth(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"subject": auth.Identity.ID})
	})
	return r
}

func doRequest(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	tokens := new(mock.MockTokenVerifier)
	users := new(mock.MockSubjectChecker)
	r := setupAuthRouter(t, tokens, users)

	w := doRequest(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	tokens.AssertNotCalled(t, "Verify")
}

func TestAuth_EmptyBearer(t *testing.T) {
	tokens := new(mock.MockTokenVerifier)
	users := new(mock.MockSubjectChecker)
	r := setupAuthRouter(t, tokens, users)

	w := doRequest(r, "Bearer   ")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	tokens.AssertNotCalled(t, "Verify")
}

func TestAuth_InvalidToken(t *testing.T) {
	tokens := new(mock.MockTokenVerifier)
	users := new(mock.MockSubjectChecker)
	tokens.On("Verify", testify_mock.Anything, "bad").Return(nil, apierrors.ErrUnauthenticated)
	r := setupAuthRouter(t, tokens, users)

	w := doRequest(r, "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	users.AssertNotCalled(t, "SubjectExists")
}

func TestAuth_DeletedSubject(t *testing.T) {
	tokens := new(mock.MockTokenVerifier)
	users := new(mock.MockSubjectChecker)
	tokens.On("Verify", testify_mock.Anything, "good").
		Return(&model.Identity{ID: "ghost", Role: model.RoleMember}, nil)
	users.On("SubjectExists", testify_mock.Anything, "ghost").Return(false, nil)
	r := setupAuthRouter(t, tokens, users)

	w := doRequest(r, "Bearer good")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_SubjectLookupFailure(t *testing.T) {
	tokens := new(mock.MockTokenVerifier)
	users := new(mock.MockSubjectChecker)
	tokens.On("Verify", testify_mock.Anything, "good").
		Return(&model.Identity{ID: "u1", Role: model.RoleMember}, nil)
	users.On("SubjectExists", testify_mock.Anything, "u1").Return(false, apierrors.ErrDatabaseOperation)
	r := setupAuthRouter(t, tokens, users)

	// A datastore failure is a server error, not an auth verdict.
	w := doRequest(r, "Bearer good")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAuth_ValidTokenAttachesIdentity(t *testing.T) {
	tokens := new(mock.MockTokenVerifier)
	users := new(mock.MockSubjectChecker)
	tokens.On("Verify", testify_mock.Anything, "good").
		Return(&model.Identity{ID: "u1", Role: model.RoleMember}, nil)
	users.On("SubjectExists", testify_mock.Anything, "u1").Return(true, nil)
	r := setupAuthRouter(t, tokens, users)

	w := doRequest(r, "Bearer good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"subject":"u1"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
