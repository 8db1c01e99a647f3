// service/project_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taskhive/api/access"
	"github.com/taskhive/api/dao"
	"github.com/taskhive/api/db"
	apierrors "github.com/taskhive/api/errors"
	logger "github.com/taskhive/api/logging"
	"github.com/taskhive/api/model"
	"github.com/taskhive/api/util"
)

// IProjectService defines the interface for project-related operations
type IProjectService interface {
	CreateProject(ctx context.Context, project model.Project) (*model.Project, error)
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	UpdateProject(ctx context.Context, project model.Project) (*model.Project, error)
	DeleteProject(ctx context.Context, projectID string) error
	AddMember(ctx context.Context, projectID, userID string) error
	RemoveMember(ctx context.Context, projectID, userID string) error
	TransferOwnership(ctx context.Context, projectID, newOwnerID string) error
	ListProjectsForUser(ctx context.Context, userID string, limit, offset int) ([]*model.Project, error)
}

// ProjectService handles the project lifecycle. Every write that changes who
// belongs to a project invalidates that project's cached access decisions,
// strictly after the datastore write has committed.
type ProjectService struct {
	projectDAO          *dao.ProjectDAO
	userDAO             *dao.UserDAO
	accessCache         access.ICache
	locks               *db.CacheStore
	validationUtil      *util.ValidationUtil
	notificationService *util.NotificationService
	eventBus            *util.EventBus
}

var _ IProjectService = &ProjectService{}

func NewProjectService(projectDAO *dao.ProjectDAO, userDAO *dao.UserDAO, accessCache access.ICache, locks *db.CacheStore, validationUtil *util.ValidationUtil, notificationService *util.NotificationService, eventBus *util.EventBus) *ProjectService {
	service := &ProjectService{
		projectDAO:          projectDAO,
		userDAO:             userDAO,
		accessCache:         accessCache,
		locks:               locks,
		validationUtil:      validationUtil,
		notificationService: notificationService,
		eventBus:            eventBus,
	}
	service.subscribeToEvents()
	return service
}

func (s *ProjectService) subscribeToEvents() {
	s.eventBus.Subscribe("project.created", func(ctx context.Context, event util.Event) error {
		project, ok := event.Payload.(model.Project)
		if !ok {
			return fmt.Errorf("unexpected payload type for project.created: %T", event.Payload)
		}
		return s.notificationService.NotifyProjectChange(ctx, "created", project)
	})
	s.eventBus.Subscribe("project.deleted", func(ctx context.Context, event util.Event) error {
		project, ok := event.Payload.(model.Project)
		if !ok {
			return fmt.Errorf("unexpected payload type for project.deleted: %T", event.Payload)
		}
		return s.notificationService.NotifyProjectChange(ctx, "deleted", project)
	})
}

// invalidateProject drops every cached decision for the project. A failure
// here is logged, not returned: the write has already committed and the
// entries expire on their own TTL anyway.
func (s *ProjectService) invalidateProject(ctx context.Context, projectID string) {
	if err := s.accessCache.Invalidate(ctx, model.ResourceProject, projectID); err != nil {
		logger.Warn("Failed to invalidate project access cache",
			zap.String("projectID", projectID), zap.Error(err))
	}
}

func (s *ProjectService) CreateProject(ctx context.Context, project model.Project) (*model.Project, error) {
	if err := s.validationUtil.ValidateProject(project); err != nil {
		return nil, fmt.Errorf("%w: %v", apierrors.ErrInvalidProjectData, err)
	}

	if _, err := s.userDAO.GetUser(ctx, project.OwnerID); err != nil {
		return nil, err
	}

	projectID, err := s.projectDAO.CreateProject(ctx, project)
	if err != nil {
		logger.Error("Error creating project", zap.Error(err))
		return nil, err
	}
	project.ID = projectID

	s.eventBus.Publish(ctx, "project.created", project)
	logger.Info("Project created", zap.String("projectID", projectID))
	return &project, nil
}

func (s *ProjectService) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	return s.projectDAO.GetProject(ctx, projectID)
}

func (s *ProjectService) UpdateProject(ctx context.Context, project model.Project) (*model.Project, error) {
	if err := s.validationUtil.ValidateProject(project); err != nil {
		return nil, fmt.Errorf("%w: %v", apierrors.ErrInvalidProjectData, err)
	}

	updated, err := s.projectDAO.UpdateProject(ctx, project)
	if err != nil {
		return nil, err
	}

	logger.Info("Project updated", zap.String("projectID", project.ID))
	return updated, nil
}

func (s *ProjectService) DeleteProject(ctx context.Context, projectID string) error {
	project, err := s.projectDAO.GetProject(ctx, projectID)
	if err != nil {
		return err
	}

	if err := s.projectDAO.DeleteProject(ctx, projectID); err != nil {
		logger.Error("Error deleting project", zap.String("projectID", projectID), zap.Error(err))
		return err
	}

	// The project's tasks are gone with it; their per-task decisions age out
	// on TTL and would resolve to deny once re-checked.
	s.invalidateProject(ctx, projectID)

	s.eventBus.Publish(ctx, "project.deleted", *project)
	logger.Info("Project deleted", zap.String("projectID", projectID))
	return nil
}

func (s *ProjectService) AddMember(ctx context.Context, projectID, userID string) error {
	if _, err := s.userDAO.GetUser(ctx, userID); err != nil {
		return err
	}

	if err := s.projectDAO.AddMember(ctx, projectID, userID); err != nil {
		return err
	}

	s.invalidateProject(ctx, projectID)

	if err := s.notificationService.NotifyMembershipChange(ctx, "member_added", model.ResourceProject, projectID, userID); err != nil {
		logger.Warn("Failed to send membership notification", zap.Error(err))
	}
	logger.Info("Member added to project",
		zap.String("projectID", projectID), zap.String("userID", userID))
	return nil
}

func (s *ProjectService) RemoveMember(ctx context.Context, projectID, userID string) error {
	if err := s.projectDAO.RemoveMember(ctx, projectID, userID); err != nil {
		return err
	}

	s.invalidateProject(ctx, projectID)

	if err := s.notificationService.NotifyMembershipChange(ctx, "member_removed", model.ResourceProject, projectID, userID); err != nil {
		logger.Warn("Failed to send membership notification", zap.Error(err))
	}
	logger.Info("Member removed from project",
		zap.String("projectID", projectID), zap.String("userID", userID))
	return nil
}

func (s *ProjectService) TransferOwnership(ctx context.Context, projectID, newOwnerID string) error {
	if _, err := s.userDAO.GetUser(ctx, newOwnerID); err != nil {
		return err
	}

	// Two concurrent transfers of the same project would rewire the OWNS
	// relationship twice; only one may proceed at a time.
	lockName := fmt.Sprintf("project:%s:transfer", projectID)
	locked, err := s.locks.LockResource(ctx, lockName, 10*time.Second)
	if err != nil {
		return err
	}
	if !locked {
		return apierrors.ErrProjectConflict
	}
	defer func() {
		if err := s.locks.UnlockResource(ctx, lockName); err != nil {
			logger.Warn("Failed to release transfer lock", zap.String("projectID", projectID), zap.Error(err))
		}
	}()

	if err := s.projectDAO.TransferOwnership(ctx, projectID, newOwnerID); err != nil {
		return err
	}

	s.invalidateProject(ctx, projectID)

	if err := s.notificationService.NotifyMembershipChange(ctx, "ownership_transferred", model.ResourceProject, projectID, newOwnerID); err != nil {
		logger.Warn("Failed to send membership notification", zap.Error(err))
	}
	logger.Info("Project ownership transferred",
		zap.String("projectID", projectID), zap.String("newOwnerID", newOwnerID))
	return nil
}

func (s *ProjectService) ListProjectsForUser(ctx context.Context, userID string, limit, offset int) ([]*model.Project, error) {
	return s.projectDAO.ListProjectsForUser(ctx, userID, limit, offset)
}
