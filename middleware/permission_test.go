// middleware/permission_test.go
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

// asIdentity fakes the auth middleware by attaching the identity directly.
func asIdentity(identity model.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := model.RequestAuth{Identity: identity, RawToken: "test-token", CorrelationID: "test"}
		c.Request = c.Request.WithContext(model.WithRequestAuth(c.Request.Context(), auth))
		c.Next()
	}
}

func okHandler(c *gin.Context) {
	c.Status(http.StatusOK)
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireProjectAccess_AllowPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cache := new(mock.MockAccessCache)
	cache.On("Check", testify_mock.Anything, "u1", model.ResourceProject, "p1").
		Return(model.DecisionAllow, nil)
	gate := NewPermissionGate(cache, new(mock.MockProjectGetter))

	r := gin.New()
	r.GET("/projects/:id", asIdentity(model.Identity{ID: "u1", Role: model.RoleMember}),
		gate.RequireProjectAccess("id"), okHandler)

	w := get(r, "/projects/p1")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireProjectAccess_DenyIsForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cache := new(mock.MockAccessCache)
	cache.On("Check", testify_mock.Anything, "u1", model.ResourceProject, "p1").
		Return(model.DecisionDeny, nil)
	gate := NewPermissionGate(cache, new(mock.MockProjectGetter))

	r := gin.New()
	r.GET("/projects/:id", asIdentity(model.Identity{ID: "u1", Role: model.RoleMember}),
		gate.RequireProjectAccess("id"), okHandler)

	w := get(r, "/projects/p1")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireProjectAccess_AdminBypassesCache(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cache := new(mock.MockAccessCache)
	gate := NewPermissionGate(cache, new(mock.MockProjectGetter))

	r := gin.New()
	r.GET("/projects/:id", asIdentity(model.Identity{ID: "root", Role: model.RoleAdmin}),
		gate.RequireProjectAccess("id"), okHandler)

	w := get(r, "/projects/p1")
	assert.Equal(t, http.StatusOK, w.Code)
	cache.AssertNotCalled(t, "Check")
}

func TestRequireProjectAccess_NoIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gate := NewPermissionGate(new(mock.MockAccessCache), new(mock.MockProjectGetter))

	r := gin.New()
	r.GET("/projects/:id", gate.RequireProjectAccess("id"), okHandler)

	w := get(r, "/projects/p1")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireTaskAccess_CheckFailureIsServerError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cache := new(mock.MockAccessCache)
	cache.On("Check", testify_mock.Anything, "u1", model.ResourceTask, "t1").
		Return(model.Decision(""), apierrors.ErrDatabaseOperation)
	gate := NewPermissionGate(cache, new(mock.MockProjectGetter))

	r := gin.New()
	r.GET("/tasks/:id", asIdentity(model.Identity{ID: "u1", Role: model.RoleMember}),
		gate.RequireTaskAccess("id"), okHandler)

	w := get(r, "/tasks/t1")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireProjectOwner_MemberIsDenied(t *testing.T) {
	gin.SetMode(gin.TestMode)
	projects := new(mock.MockProjectGetter)
	projects.On("GetProject", testify_mock.Anything, "p1").
		Return(&model.Project{ID: "p1", OwnerID: "u1", MemberIDs: []string{"u2"}}, nil)
	gate := NewPermissionGate(new(mock.MockAccessCache), projects)

	r := gin.New()
	// u2 is a member, membership is not ownership.
	r.GET("/projects/:id", asIdentity(model.Identity{ID: "u2", Role: model.RoleMember}),
		gate.RequireProjectOwner("id"), okHandler)

	w := get(r, "/projects/p1")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireProjectOwner_OwnerPasses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	projects := new(mock.MockProjectGetter)
	projects.On("GetProject", testify_mock.Anything, "p1").
		Return(&model.Project{ID: "p1", OwnerID: "u1"}, nil)
	gate := NewPermissionGate(new(mock.MockAccessCache), projects)

	r := gin.New()
	r.GET("/projects/:id", asIdentity(model.Identity{ID: "u1", Role: model.RoleMember}),
		gate.RequireProjectOwner("id"), okHandler)

	w := get(r, "/projects/p1")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireProjectOwner_MissingProject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	projects := new(mock.MockProjectGetter)
	projects.On("GetProject", testify_mock.Anything, "ghost").
		Return(nil, apierrors.ErrProjectNotFound)
	gate := NewPermissionGate(new(mock.MockAccessCache), projects)

	r := gin.New()
	r.GET("/projects/:id", asIdentity(model.Identity{ID: "u1", Role: model.RoleMember}),
		gate.RequireProjectOwner("id"), okHandler)

	w := get(r, "/projects/ghost")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gate := NewPermissionGate(new(mock.MockAccessCache), new(mock.MockProjectGetter))

	r := gin.New()
	r.GET("/admin", asIdentity(model.Identity{ID: "u1", Role: model.RoleMember}),
		gate.RequireRoles(model.RoleAdmin), okHandler)
	r.GET("/managers", asIdentity(model.Identity{ID: "u2", Role: model.RoleManager}),
		gate.RequireRoles(model.RoleAdmin, model.RoleManager), okHandler)

	assert.Equal(t, http.StatusForbidden, get(r, "/admin").Code)
	assert.Equal(t, http.StatusOK, get(r, "/managers").Code)
}
