// controller/project_controller.go
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

type ProjectController struct {
	projectService service.IProjectService
}

func NewProjectController(projectService service.IProjectService) *ProjectController {
	return &ProjectController{
		projectService: projectService,
	}
}

// RegisterRoutes registers the API routes. Reads go through the decision
// cache; membership and ownership writes require the owner and bypass it.
func (pc *ProjectController) RegisterRoutes(r *gin.RouterGroup, gate *middleware.PermissionGate) {
	projects := r.Group("/projects")
	{
		projects.POST("", pc.CreateProject)
		projects.GET("", pc.ListProjects)
		projects.GET("/:id", gate.RequireProjectAccess("id"), pc.GetProject)
		projects.PUT("/:id", gate.RequireProjectOwner("id"), pc.UpdateProject)
		projects.DELETE("/:id", gate.RequireProjectOwner("id"), pc.DeleteProject)
		projects.POST("/:id/members/:userId", gate.RequireProjectOwner("id"), pc.AddMember)
		projects.DELETE("/:id/members/:userId", gate.RequireProjectOwner("id"), pc.RemoveMember)
		projects.POST("/:id/transfer", gate.RequireProjectOwner("id"), pc.TransferOwnership)
	}
}

// CreateProject endpoint. The caller becomes the owner.
func (pc *ProjectController) CreateProject(c *gin.Context) {
	var project model.Project
	if err := c.ShouldBindJSON(&project); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid project data", apierrors.ErrInvalidProjectData)
		return
	}

	auth, ok := middleware.GetRequestAuth(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthenticated", apierrors.ErrUnauthenticated)
		return
	}
	project.OwnerID = auth.Identity.ID

	createdProject, err := pc.projectService.CreateProject(c, project)
	if err != nil {
		switch {
		case errors.Is(err, apierrors.ErrInvalidProjectData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid project data", err)
		case errors.Is(err, apierrors.ErrProjectConflict):
			util.RespondWithError(c, http.StatusConflict, "Project already exists", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to create project", apierrors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusCreated, createdProject)
}

// GetProject endpoint
func (pc *ProjectController) GetProject(c *gin.Context) {
	projectID := c.Param("id")

	project, err := pc.projectService.GetProject(c, projectID)
	if err != nil {
		if errors.Is(err, apierrors.ErrProjectNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Project not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve project", err)
		}
		return
	}

	c.JSON(http.StatusOK, project)
}

// ListProjects endpoint lists the caller's projects.
func (pc *ProjectController) ListProjects(c *gin.Context) {
	auth, ok := middleware.GetRequestAuth(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthenticated", apierrors.ErrUnauthenticated)
		return
	}

	limit, offset, err := helper_util.GetPaginationParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", err)
		return
	}

	projects, err := pc.projectService.ListProjectsForUser(c, auth.Identity.ID, limit, offset)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to list projects", err)
		return
	}

	c.JSON(http.StatusOK, projects)
}

// UpdateProject endpoint
func (pc *ProjectController) UpdateProject(c *gin.Context) {
	projectID := c.Param("id")
	var project model.Project
	if err := c.ShouldBindJSON(&project); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid project data", apierrors.ErrInvalidProjectData)
		return
	}
	project.ID = projectID

	updatedProject, err := pc.projectService.UpdateProject(c, project)
	if err != nil {
		switch {
		case errors.Is(err, apierrors.ErrProjectNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Project not found", err)
		case errors.Is(err, apierrors.ErrInvalidProjectData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid project data", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to update project", err)
		}
		return
	}

	c.JSON(http.StatusOK, updatedProject)
}

// DeleteProject endpoint
func (pc *ProjectController) DeleteProject(c *gin.Context) {
	projectID := c.Param("id")

	if err := pc.projectService.DeleteProject(c, projectID); err != nil {
		if errors.Is(err, apierrors.ErrProjectNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Project not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to delete project", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// AddMember endpoint
func (pc *ProjectController) AddMember(c *gin.Context) {
	projectID := c.Param("id")
	userID := c.Param("userId")

	if err := pc.projectService.AddMember(c, projectID, userID); err != nil {
		switch {
		case errors.Is(err, apierrors.ErrProjectNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Project not found", err)
		case errors.Is(err, apierrors.ErrUserNotFound):
			util.RespondWithError(c, http.StatusNotFound, "User not found", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to add member", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// RemoveMember endpoint
func (pc *ProjectController) RemoveMember(c *gin.Context) {
	projectID := c.Param("id")
	userID := c.Param("userId")

	if err := pc.projectService.RemoveMember(c, projectID, userID); err != nil {
		switch {
		case errors.Is(err, apierrors.ErrProjectNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Project not found", err)
		case errors.Is(err, apierrors.ErrUserNotFound):
			util.RespondWithError(c, http.StatusNotFound, "User not found", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to remove member", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

type transferRequest struct {
	NewOwnerID string `json:"new_owner_id" binding:"required"`
}

// TransferOwnership endpoint
func (pc *ProjectController) TransferOwnership(c *gin.Context) {
	projectID := c.Param("id")
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Missing new owner", apierrors.ErrInvalidProjectData)
		return
	}

	if err := pc.projectService.TransferOwnership(c, projectID, req.NewOwnerID); err != nil {
		switch {
		case errors.Is(err, apierrors.ErrProjectNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Project not found", err)
		case errors.Is(err, apierrors.ErrUserNotFound):
			util.RespondWithError(c, http.StatusNotFound, "User not found", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to transfer ownership", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}
