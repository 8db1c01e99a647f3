// util/notification_service.go

package util

import (
	"context"

	"go.uber.org/zap"

	logger "github.com/taskhive/api/logging"
	"github.com/taskhive/api/model"
)

type NotificationService struct {
	// You might want to add dependencies here, such as a message queue client
}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

func (n *NotificationService) NotifyUserChange(ctx context.Context, changeType string, user model.User) error {
	logger.Info("Notifying user change",
		zap.String("changeType", changeType),
		zap.String("userID", user.ID),
		zap.String("username", user.Username))
	return nil
}

func (n *NotificationService) NotifyProjectChange(ctx context.Context, changeType string, project model.Project) error {
	logger.Info("Notifying project change",
		zap.String("changeType", changeType),
		zap.String("projectID", project.ID),
		zap.String("projectName", project.Name))
	return nil
}

func (n *NotificationService) NotifyTaskChange(ctx context.Context, changeType string, task model.Task) error {
	logger.Info("Notifying task change",
		zap.String("changeType", changeType),
		zap.String("taskID", task.ID),
		zap.String("taskTitle", task.Title))
	return nil
}

// NotifyMembershipChange tells an affected user that their access to a
// resource changed.
func (n *NotificationService) NotifyMembershipChange(ctx context.Context, changeType string, resourceType model.ResourceType, resourceID, userID string) error {
	logger.Info("Notifying membership change",
		zap.String("changeType", changeType),
		zap.String("resourceType", string(resourceType)),
		zap.String("resourceID", resourceID),
		zap.String("userID", userID))
	return nil
}
