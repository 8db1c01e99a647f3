// util/validation_util.go

package util

import (
	"fmt"
	"strings"

	"github.com/taskhive/api/model"
)

type ValidationUtil struct{}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{}
}

func (v *ValidationUtil) ValidateUser(user model.User) error {
	if user.Name == "" {
		return fmt.Errorf("user name cannot be empty")
	}
	if user.Username == "" {
		return fmt.Errorf("user username cannot be empty")
	}
	if user.Email == "" || !strings.Contains(user.Email, "@") {
		return fmt.Errorf("user email is invalid")
	}
	if _, err := model.ParseRole(string(user.Role)); err != nil {
		return err
	}
	return nil
}

func (v *ValidationUtil) ValidateProject(project model.Project) error {
	if project.Name == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if project.OwnerID == "" {
		return fmt.Errorf("project owner ID cannot be empty")
	}
	return nil
}

func (v *ValidationUtil) ValidateTask(task model.Task) error {
	if task.Title == "" {
		return fmt.Errorf("task title cannot be empty")
	}
	if task.ProjectID == "" {
		return fmt.Errorf("task project ID cannot be empty")
	}
	switch task.Status {
	case "", model.TaskStatusOpen, model.TaskStatusInProgress, model.TaskStatusDone:
	default:
		return fmt.Errorf("unknown task status: %q", task.Status)
	}
	return nil
}

func (v *ValidationUtil) ValidateCredentials(username, password string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}
