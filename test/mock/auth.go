// test/mock/auth.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/taskhive/api/model"
)

// MockTokenVerifier is a mock implementation of middleware.TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(ctx context.Context, accessToken string) (*model.Identity, error) {
	args := m.Called(ctx, accessToken)
	var identity *model.Identity
	if args.Get(0) != nil {
		identity = args.Get(0).(*model.Identity)
	}
	return identity, args.Error(1)
}

// MockSubjectChecker is a mock implementation of middleware.SubjectChecker
type MockSubjectChecker struct {
	mock.Mock
}

func (m *MockSubjectChecker) SubjectExists(ctx context.Context, subjectID string) (bool, error) {
	args := m.Called(ctx, subjectID)
	return args.Bool(0), args.Error(1)
}

// MockAccessCache is a mock implementation of access.ICache
type MockAccessCache struct {
	mock.Mock
}

func (m *MockAccessCache) Check(ctx context.Context, subjectID string, resourceType model.ResourceType, resourceID string) (model.Decision, error) {
	args := m.Called(ctx, subjectID, resourceType, resourceID)
	return args.Get(0).(model.Decision), args.Error(1)
}

func (m *MockAccessCache) Invalidate(ctx context.Context, resourceType model.ResourceType, resourceID string) error {
	args := m.Called(ctx, resourceType, resourceID)
	return args.Error(0)
}

// MockProjectGetter is a mock implementation of middleware.ProjectGetter
type MockProjectGetter struct {
	mock.Mock
}

func (m *MockProjectGetter) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	args := m.Called(ctx, projectID)
	var p *model.Project
	if args.Get(0) != nil {
		p = args.Get(0).(*model.Project)
	}
	return p, args.Error(1)
}
