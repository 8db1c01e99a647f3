// service/services.go
package service

import (
	"github.com/taskhive/api/access"
	"github.com/taskhive/api/dao"
	"github.com/taskhive/api/db"
	"github.com/taskhive/api/token"
	"github.com/taskhive/api/util"
)

type Services struct {
	Auth    IAuthService
	User    IUserService
	Project IProjectService
	Task    ITaskService
}

func InitializeServices(
	userDAO *dao.UserDAO,
	projectDAO *dao.ProjectDAO,
	taskDAO *dao.TaskDAO,
	tokens token.IService,
	accessCache access.ICache,
	cacheStore *db.CacheStore,
	validationUtil *util.ValidationUtil,
	notificationSvc *util.NotificationService,
	eventBus *util.EventBus,
) (*Services, error) {
	services := &Services{
		Auth:    NewAuthService(userDAO, tokens, validationUtil, eventBus),
		User:    NewUserService(userDAO, tokens, validationUtil, notificationSvc, eventBus),
		Project: NewProjectService(projectDAO, userDAO, accessCache, cacheStore, validationUtil, notificationSvc, eventBus),
		Task:    NewTaskService(taskDAO, projectDAO, userDAO, accessCache, validationUtil, notificationSvc, eventBus),
	}

	return services, nil
}
