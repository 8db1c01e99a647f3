// test/mock/services.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/taskhive/api/model"
)

// MockAuthService is a mock implementation of service.IAuthService
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, user model.User, password string) (*model.User, *model.TokenPair, error) {
	args := m.Called(ctx, user, password)
	var u *model.User
	if args.Get(0) != nil {
		u = args.Get(0).(*model.User)
	}
	var p *model.TokenPair
	if args.Get(1) != nil {
		p = args.Get(1).(*model.TokenPair)
	}
	return u, p, args.Error(2)
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (*model.User, *model.TokenPair, error) {
	args := m.Called(ctx, username, password)
	var u *model.User
	if args.Get(0) != nil {
		u = args.Get(0).(*model.User)
	}
	var p *model.TokenPair
	if args.Get(1) != nil {
		p = args.Get(1).(*model.TokenPair)
	}
	return u, p, args.Error(2)
}

func (m *MockAuthService) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	var p *model.TokenPair
	if args.Get(0) != nil {
		p = args.Get(0).(*model.TokenPair)
	}
	return p, args.Error(1)
}

// MockUserService is a mock implementation of service.IUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	args := m.Called(ctx, userID)
	var u *model.User
	if args.Get(0) != nil {
		u = args.Get(0).(*model.User)
	}
	return u, args.Error(1)
}

func (m *MockUserService) UpdateUser(ctx context.Context, user model.User) (*model.User, error) {
	args := m.Called(ctx, user)
	var u *model.User
	if args.Get(0) != nil {
		u = args.Get(0).(*model.User)
	}
	return u, args.Error(1)
}

func (m *MockUserService) DeleteUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error) {
	args := m.Called(ctx, limit, offset)
	var users []*model.User
	if args.Get(0) != nil {
		users = args.Get(0).([]*model.User)
	}
	return users, args.Error(1)
}

// MockProjectService is a mock implementation of service.IProjectService
type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) CreateProject(ctx context.Context, project model.Project) (*model.Project, error) {
	args := m.Called(ctx, project)
	var p *model.Project
	if args.Get(0) != nil {
		p = args.Get(0).(*model.Project)
	}
	return p, args.Error(1)
}

func (m *MockProjectService) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	args := m.Called(ctx, projectID)
	var p *model.Project
	if args.Get(0) != nil {
		p = args.Get(0).(*model.Project)
	}
	return p, args.Error(1)
}

func (m *MockProjectService) UpdateProject(ctx context.Context, project model.Project) (*model.Project, error) {
	args := m.Called(ctx, project)
	var p *model.Project
	if args.Get(0) != nil {
		p = args.Get(0).(*model.Project)
	}
	return p, args.Error(1)
}

func (m *MockProjectService) DeleteProject(ctx context.Context, projectID string) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

func (m *MockProjectService) AddMember(ctx context.Context, projectID, userID string) error {
	args := m.Called(ctx, projectID, userID)
	return args.Error(0)
}

func (m *MockProjectService) RemoveMember(ctx context.Context, projectID, userID string) error {
	args := m.Called(ctx, projectID, userID)
	return args.Error(0)
}

func (m *MockProjectService) TransferOwnership(ctx context.Context, projectID, newOwnerID string) error {
	args := m.Called(ctx, projectID, newOwnerID)
	return args.Error(0)
}

func (m *MockProjectService) ListProjectsForUser(ctx context.Context, userID string, limit, offset int) ([]*model.Project, error) {
	args := m.Called(ctx, userID, limit, offset)
	var projects []*model.Project
	if args.Get(0) != nil {
		projects = args.Get(0).([]*model.Project)
	}
	return projects, args.Error(1)
}

// MockTaskService is a mock implementation of service.ITaskService
type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) CreateTask(ctx context.Context, task model.Task) (*model.Task, error) {
	args := m.Called(ctx, task)
	var t *model.Task
	if args.Get(0) != nil {
		t = args.Get(0).(*model.Task)
	}
	return t, args.Error(1)
}

func (m *MockTaskService) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	args := m.Called(ctx, taskID)
	var t *model.Task
	if args.Get(0) != nil {
		t = args.Get(0).(*model.Task)
	}
	return t, args.Error(1)
}

func (m *MockTaskService) UpdateTask(ctx context.Context, task model.Task) (*model.Task, error) {
	args := m.Called(ctx, task)
	var t *model.Task
	if args.Get(0) != nil {
		t = args.Get(0).(*model.Task)
	}
	return t, args.Error(1)
}

func (m *MockTaskService) AssignTask(ctx context.Context, taskID, assigneeID string) error {
	args := m.Called(ctx, taskID, assigneeID)
	return args.Error(0)
}

func (m *MockTaskService) DeleteTask(ctx context.Context, taskID string) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

func (m *MockTaskService) ListTasksForProject(ctx context.Context, projectID string, limit, offset int) ([]*model.Task, error) {
	args := m.Called(ctx, projectID, limit, offset)
	var tasks []*model.Task
	if args.Get(0) != nil {
		tasks = args.Get(0).([]*model.Task)
	}
	return tasks, args.Error(1)
}
