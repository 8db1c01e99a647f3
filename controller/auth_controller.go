// controller/auth_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/taskhive/api/errors"
	"github.com/taskhive/api/model"
	"github.com/taskhive/api/service"
	"github.com/taskhive/api/util"
)

type AuthController struct {
	authService service.IAuthService
}

func NewAuthController(authService service.IAuthService) *AuthController {
	return &AuthController{
		authService: authService,
	}
}

// RegisterPublicRoutes registers the routes that require no credentials.
func (ac *AuthController) RegisterPublicRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", ac.Register)
		auth.POST("/login", ac.Login)
		auth.POST("/refresh", ac.Refresh)
	}
}

// RegisterProtectedRoutes registers the routes behind the auth middleware.
func (ac *AuthController) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/auth/logout", ac.Logout)
}

type registerRequest struct {
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required"`
	Profession string `json:"profession"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type authResponse struct {
	User   *model.User      `json:"user,omitempty"`
	Tokens *model.TokenPair `json:"tokens"`
}

// Register endpoint
func (ac *AuthController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid registration data", apierrors.ErrInvalidUserData)
		return
	}

	user := model.User{
		Username:   req.Username,
		Name:       req.Name,
		Email:      req.Email,
		Role:       model.RoleMember,
		Profession: req.Profession,
	}

	createdUser, tokens, err := ac.authService.Register(c, user, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, apierrors.ErrUserConflict):
			util.RespondWithError(c, http.StatusConflict, "Username already taken", err)
		case errors.Is(err, apierrors.ErrInvalidUserData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid registration data", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to register", apierrors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusCreated, authResponse{User: createdUser, Tokens: tokens})
}

// Login endpoint
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid login data", apierrors.ErrInvalidCredentials)
		return
	}

	user, tokens, err := ac.authService.Login(c, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, apierrors.ErrInvalidCredentials) {
			util.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to log in", apierrors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusOK, authResponse{User: user, Tokens: tokens})
}

// Logout endpoint
func (ac *AuthController) Logout(c *gin.Context) {
	if err := ac.authService.Logout(c.Request.Context()); err != nil {
		if errors.Is(err, apierrors.ErrUnauthenticated) {
			util.RespondWithError(c, http.StatusUnauthorized, "Unauthenticated", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to log out", apierrors.ErrInternalServer)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// Refresh endpoint. A refresh token that was already rotated by a concurrent
// request gets a conflict, not a second pair.
func (ac *AuthController) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Missing refresh token", apierrors.ErrUnauthenticated)
		return
	}

	tokens, err := ac.authService.Refresh(c, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, apierrors.ErrTokenConflict):
			util.RespondWithError(c, http.StatusConflict, "Refresh token already used", err)
		case errors.Is(err, apierrors.ErrUnauthenticated):
			util.RespondWithError(c, http.StatusUnauthorized, "Invalid refresh token", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to refresh", apierrors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusOK, authResponse{Tokens: tokens})
}
