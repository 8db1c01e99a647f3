// service/task_service.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskhive/api/access"
	"github.com/taskhive/api/dao"
	apierrors "github.com/taskhive/api/errors"
	logger "github.com/taskhive/api/logging"
	"github.com/taskhive/api/model"
	"github.com/taskhive/api/util"
)

// ITaskService defines the interface for task-related operations
type ITaskService interface {
	CreateTask(ctx context.Context, task model.Task) (*model.Task, error)
	GetTask(ctx context.Context, taskID string) (*model.Task, error)
	UpdateTask(ctx context.Context, task model.Task) (*model.Task, error)
	AssignTask(ctx context.Context, taskID, assigneeID string) error
	DeleteTask(ctx context.Context, taskID string) error
	ListTasksForProject(ctx context.Context, projectID string, limit, offset int) ([]*model.Task, error)
}

// TaskService handles the task lifecycle. Assignment changes who may touch a
// task, so assignment writes invalidate the task's cached decisions after the
// datastore write commits.
type TaskService struct {
	taskDAO             *dao.TaskDAO
	projectDAO          *dao.ProjectDAO
	userDAO             *dao.UserDAO
	accessCache         access.ICache
	validationUtil      *util.ValidationUtil
	notificationService *util.NotificationService
	eventBus            *util.EventBus
}

var _ ITaskService = &TaskService{}

func NewTaskService(taskDAO *dao.TaskDAO, projectDAO *dao.ProjectDAO, userDAO *dao.UserDAO, accessCache access.ICache, validationUtil *util.ValidationUtil, notificationService *util.NotificationService, eventBus *util.EventBus) *TaskService {
	service := &TaskService{
		taskDAO:             taskDAO,
		projectDAO:          projectDAO,
		userDAO:             userDAO,
		accessCache:         accessCache,
		validationUtil:      validationUtil,
		notificationService: notificationService,
		eventBus:            eventBus,
	}
	service.subscribeToEvents()
	return service
}

func (s *TaskService) subscribeToEvents() {
	s.eventBus.Subscribe("task.created", func(ctx context.Context, event util.Event) error {
		task, ok := event.Payload.(model.Task)
		if !ok {
			return fmt.Errorf("unexpected payload type for task.created: %T", event.Payload)
		}
		return s.notificationService.NotifyTaskChange(ctx, "created", task)
	})
	s.eventBus.Subscribe("task.deleted", func(ctx context.Context, event util.Event) error {
		task, ok := event.Payload.(model.Task)
		if !ok {
			return fmt.Errorf("unexpected payload type for task.deleted: %T", event.Payload)
		}
		return s.notificationService.NotifyTaskChange(ctx, "deleted", task)
	})
}

func (s *TaskService) invalidateTask(ctx context.Context, taskID string) {
	if err := s.accessCache.Invalidate(ctx, model.ResourceTask, taskID); err != nil {
		logger.Warn("Failed to invalidate task access cache",
			zap.String("taskID", taskID), zap.Error(err))
	}
}

func (s *TaskService) CreateTask(ctx context.Context, task model.Task) (*model.Task, error) {
	if err := s.validationUtil.ValidateTask(task); err != nil {
		return nil, fmt.Errorf("%w: %v", apierrors.ErrInvalidTaskData, err)
	}

	if _, err := s.projectDAO.GetProject(ctx, task.ProjectID); err != nil {
		return nil, err
	}

	taskID, err := s.taskDAO.CreateTask(ctx, task)
	if err != nil {
		logger.Error("Error creating task", zap.Error(err))
		return nil, err
	}
	task.ID = taskID

	s.eventBus.Publish(ctx, "task.created", task)
	logger.Info("Task created", zap.String("taskID", taskID), zap.String("projectID", task.ProjectID))
	return &task, nil
}

func (s *TaskService) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	return s.taskDAO.GetTask(ctx, taskID)
}

func (s *TaskService) UpdateTask(ctx context.Context, task model.Task) (*model.Task, error) {
	if err := s.validationUtil.ValidateTask(task); err != nil {
		return nil, fmt.Errorf("%w: %v", apierrors.ErrInvalidTaskData, err)
	}

	updated, err := s.taskDAO.UpdateTask(ctx, task)
	if err != nil {
		return nil, err
	}

	logger.Info("Task updated", zap.String("taskID", task.ID))
	return updated, nil
}

// AssignTask points the task at a new assignee. The assignee must exist and
// belong to the task's project.
func (s *TaskService) AssignTask(ctx context.Context, taskID, assigneeID string) error {
	if _, err := s.userDAO.GetUser(ctx, assigneeID); err != nil {
		return err
	}

	task, err := s.taskDAO.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	membership, err := s.projectDAO.GetMembership(ctx, task.ProjectID)
	if err != nil {
		return err
	}
	if !membership.Contains(assigneeID) {
		return fmt.Errorf("%w: assignee %s is not a member of project %s",
			apierrors.ErrInvalidTaskData, assigneeID, task.ProjectID)
	}

	if err := s.taskDAO.AssignTask(ctx, taskID, assigneeID); err != nil {
		return err
	}

	s.invalidateTask(ctx, taskID)

	if err := s.notificationService.NotifyMembershipChange(ctx, "task_assigned", model.ResourceTask, taskID, assigneeID); err != nil {
		logger.Warn("Failed to send assignment notification", zap.Error(err))
	}
	logger.Info("Task assigned", zap.String("taskID", taskID), zap.String("assigneeID", assigneeID))
	return nil
}

func (s *TaskService) DeleteTask(ctx context.Context, taskID string) error {
	task, err := s.taskDAO.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	if err := s.taskDAO.DeleteTask(ctx, taskID); err != nil {
		logger.Error("Error deleting task", zap.String("taskID", taskID), zap.Error(err))
		return err
	}

	s.invalidateTask(ctx, taskID)

	s.eventBus.Publish(ctx, "task.deleted", *task)
	logger.Info("Task deleted", zap.String("taskID", taskID))
	return nil
}

func (s *TaskService) ListTasksForProject(ctx context.Context, projectID string, limit, offset int) ([]*model.Task, error) {
	return s.taskDAO.ListTasksForProject(ctx, projectID, limit, offset)
}
