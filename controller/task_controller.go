// controller/task_controller.go
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

type TaskController struct {
	taskService service.ITaskService
}

func NewTaskController(taskService service.ITaskService) *TaskController {
	return &TaskController{
		taskService: taskService,
	}
}

// RegisterRoutes registers the API routes. Creating and listing tasks is
// gated on the parent project; everything else on the task itself.
func (tc *TaskController) RegisterRoutes(r *gin.RouterGroup, gate *middleware.PermissionGate) {
	projects := r.Group("/projects/:id/tasks")
	{
		projects.POST("", gate.RequireProjectAccess("id"), tc.CreateTask)
		projects.GET("", gate.RequireProjectAccess("id"), tc.ListTasks)
	}

	tasks := r.Group("/tasks")
	{
		tasks.GET("/:id", gate.RequireTaskAccess("id"), tc.GetTask)
		tasks.PUT("/:id", gate.RequireTaskAccess("id"), tc.UpdateTask)
		tasks.DELETE("/:id", gate.RequireTaskAccess("id"), tc.DeleteTask)
		tasks.POST("/:id/assign", gate.RequireTaskAccess("id"), tc.AssignTask)
	}
}

// CreateTask endpoint
func (tc *TaskController) CreateTask(c *gin.Context) {
	var task model.Task
	if err := c.ShouldBindJSON(&task); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid task data", apierrors.ErrInvalidTaskData)
		return
	}
	task.ProjectID = c.Param("id")

	createdTask, err := tc.taskService.CreateTask(c, task)
	if err != nil {
		switch {
		case errors.Is(err, apierrors.ErrInvalidTaskData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid task data", err)
		case errors.Is(err, apierrors.ErrProjectNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Project not found", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to create task", apierrors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusCreated, createdTask)
}

// ListTasks endpoint
func (tc *TaskController) ListTasks(c *gin.Context) {
	projectID := c.Param("id")

	limit, offset, err := helper_util.GetPaginationParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", err)
		return
	}

	tasks, err := tc.taskService.ListTasksForProject(c, projectID, limit, offset)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to list tasks", err)
		return
	}

	c.JSON(http.StatusOK, tasks)
}

// GetTask endpoint
func (tc *TaskController) GetTask(c *gin.Context) {
	taskID := c.Param("id")

	task, err := tc.taskService.GetTask(c, taskID)
	if err != nil {
		if errors.Is(err, apierrors.ErrTaskNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Task not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve task", err)
		}
		return
	}

	c.JSON(http.StatusOK, task)
}

// UpdateTask endpoint
func (tc *TaskController) UpdateTask(c *gin.Context) {
	taskID := c.Param("id")
	var task model.Task
	if err := c.ShouldBindJSON(&task); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid task data", apierrors.ErrInvalidTaskData)
		return
	}
	task.ID = taskID

	updatedTask, err := tc.taskService.UpdateTask(c, task)
	if err != nil {
		switch {
		case errors.Is(err, apierrors.ErrTaskNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Task not found", err)
		case errors.Is(err, apierrors.ErrInvalidTaskData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid task data", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to update task", err)
		}
		return
	}

	c.JSON(http.StatusOK, updatedTask)
}

// DeleteTask endpoint
func (tc *TaskController) DeleteTask(c *gin.Context) {
	taskID := c.Param("id")

	if err := tc.taskService.DeleteTask(c, taskID); err != nil {
		if errors.Is(err, apierrors.ErrTaskNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Task not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to delete task", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

type assignRequest struct {
	AssigneeID string `json:"assignee_id" binding:"required"`
}

// AssignTask endpoint
func (tc *TaskController) AssignTask(c *gin.Context) {
	taskID := c.Param("id")
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Missing assignee", apierrors.ErrInvalidTaskData)
		return
	}

	if err := tc.taskService.AssignTask(c, taskID, req.AssigneeID); err != nil {
		switch {
		case errors.Is(err, apierrors.ErrTaskNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Task not found", err)
		case errors.Is(err, apierrors.ErrUserNotFound):
			util.RespondWithError(c, http.StatusNotFound, "User not found", err)
		case errors.Is(err, apierrors.ErrInvalidTaskData):
			util.RespondWithError(c, http.StatusBadRequest, "Assignee is not a project member", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to assign task", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}
