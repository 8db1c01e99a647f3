// service/user_service.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskhive/api/dao"
	apierrors "github.com/taskhive/api/errors"
	logger "github.com/taskhive/api/logging"
	"github.com/taskhive/api/model"
	"github.com/taskhive/api/token"
	"github.com/taskhive/api/util"
)

// IUserService defines the interface for user-related operations
type IUserService interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	UpdateUser(ctx context.Context, user model.User) (*model.User, error)
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error)
}

// UserService handles account management after registration.
type UserService struct {
	userDAO             *dao.UserDAO
	tokens              token.IService
	validationUtil      *util.ValidationUtil
	notificationService *util.NotificationService
	eventBus            *util.EventBus
}

var _ IUserService = &UserService{}

func NewUserService(userDAO *dao.UserDAO, tokens token.IService, validationUtil *util.ValidationUtil, notificationService *util.NotificationService, eventBus *util.EventBus) *UserService {
	service := &UserService{
		userDAO:             userDAO,
		tokens:              tokens,
		validationUtil:      validationUtil,
		notificationService: notificationService,
		eventBus:            eventBus,
	}
	service.subscribeToEvents()
	return service
}

func (s *UserService) subscribeToEvents() {
	s.eventBus.Subscribe("user.updated", func(ctx context.Context, event util.Event) error {
		user, ok := event.Payload.(model.User)
		if !ok {
			return fmt.Errorf("unexpected payload type for user.updated: %T", event.Payload)
		}
		return s.notificationService.NotifyUserChange(ctx, "updated", user)
	})
	s.eventBus.Subscribe("user.deleted", func(ctx context.Context, event util.Event) error {
		user, ok := event.Payload.(model.User)
		if !ok {
			return fmt.Errorf("unexpected payload type for user.deleted: %T", event.Payload)
		}
		return s.notificationService.NotifyUserChange(ctx, "deleted", user)
	})
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.userDAO.GetUser(ctx, userID)
}

func (s *UserService) UpdateUser(ctx context.Context, user model.User) (*model.User, error) {
	if err := s.validationUtil.ValidateUser(user); err != nil {
		return nil, fmt.Errorf("%w: %v", apierrors.ErrInvalidUserData, err)
	}

	updated, err := s.userDAO.UpdateUser(ctx, user)
	if err != nil {
		return nil, err
	}

	s.eventBus.Publish(ctx, "user.updated", *updated)
	logger.Info("User updated", zap.String("userID", user.ID))
	return updated, nil
}

// DeleteUser removes the account and its refresh registry record. Access
// tokens already in the wild stop working at the middleware's existence
// check; cached allow decisions for the subject age out on TTL.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.userDAO.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.userDAO.DeleteUser(ctx, userID); err != nil {
		logger.Error("Error deleting user", zap.String("userID", userID), zap.Error(err))
		return err
	}

	if err := s.tokens.Revoke(ctx, "", user.Identity()); err != nil {
		logger.Warn("Failed to drop refresh record for deleted user",
			zap.String("userID", userID), zap.Error(err))
	}

	s.eventBus.Publish(ctx, "user.deleted", *user)
	logger.Info("User deleted", zap.String("userID", userID))
	return nil
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error) {
	return s.userDAO.ListUsers(ctx, limit, offset)
}
