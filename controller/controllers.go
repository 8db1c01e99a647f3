// controller/controllers.go
package controller

import "github.com/taskhive/api/service"

type Controllers struct {
	Auth    *AuthController
	User    *UserController
	Project *ProjectController
	Task    *TaskController
}

func InitializeControllers(services *service.Services) *Controllers {
	return &Controllers{
		Auth:    NewAuthController(services.Auth),
		User:    NewUserController(services.User),
		Project: NewProjectController(services.Project),
		Task:    NewTaskController(services.Task),
	}
}
