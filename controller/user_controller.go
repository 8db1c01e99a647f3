// controller/user_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/taskhive/api/errors"
	"github.com/taskhive/api/middleware"
	"github.com/taskhive/api/model"
	"github.com/taskhive/api/service"
	"github.com/taskhive/api/util"
	helper_util "github.com/taskhive/api/util/helper"
)

type UserController struct {
	userService service.IUserService
}

func NewUserController(userService service.IUserService) *UserController {
	return &UserController{
		userService: userService,
	}
}

// RegisterRoutes registers the API routes
func (uc *UserController) RegisterRoutes(r *gin.RouterGroup, gate *middleware.PermissionGate) {
	users := r.Group("/users")
	{
		users.GET("/:id", uc.GetUser)
		users.GET("", gate.RequireRoles(model.RoleAdmin, model.RoleManager), uc.ListUsers)
		users.PUT("/:id", uc.UpdateUser)
		users.DELETE("/:id", gate.RequireRoles(model.RoleAdmin), uc.DeleteUser)
	}
}

// GetUser endpoint
func (uc *UserController) GetUser(c *gin.Context) {
	userID := c.Param("id")

	user, err := uc.userService.GetUser(c, userID)
	if err != nil {
		if errors.Is(err, apierrors.ErrUserNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "User not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve user", err)
		}
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateUser endpoint. Users may edit themselves; admins may edit anyone.
func (uc *UserController) UpdateUser(c *gin.Context) {
	userID := c.Param("id")
	auth, ok := middleware.GetRequestAuth(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthenticated", apierrors.ErrUnauthenticated)
		return
	}
	if auth.Identity.ID != userID && auth.Identity.Role != model.RoleAdmin {
		util.RespondWithError(c, http.StatusForbidden, "Cannot modify another user", apierrors.ErrForbidden)
		return
	}

	var user model.User
	if err := c.ShouldBindJSON(&user); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid user data", apierrors.ErrInvalidUserData)
		return
	}
	user.ID = userID

	// Only admins can change roles.
	if auth.Identity.Role != model.RoleAdmin {
		user.Role = auth.Identity.Role
	}

	updatedUser, err := uc.userService.UpdateUser(c, user)
	if err != nil {
		switch {
		case errors.Is(err, apierrors.ErrUserNotFound):
			util.RespondWithError(c, http.StatusNotFound, "User not found", err)
		case errors.Is(err, apierrors.ErrInvalidUserData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid user data", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to update user", err)
		}
		return
	}

	c.JSON(http.StatusOK, updatedUser)
}

// DeleteUser endpoint
func (uc *UserController) DeleteUser(c *gin.Context) {
	userID := c.Param("id")

	if err := uc.userService.DeleteUser(c, userID); err != nil {
		if errors.Is(err, apierrors.ErrUserNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "User not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to delete user", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// ListUsers endpoint
func (uc *UserController) ListUsers(c *gin.Context) {
	limit, offset, err := helper_util.GetPaginationParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", err)
		return
	}

	users, err := uc.userService.ListUsers(c, limit, offset)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to list users", err)
		return
	}

	c.JSON(http.StatusOK, users)
}
