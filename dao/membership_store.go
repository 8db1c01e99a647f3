// dao/membership_store.go
package dao

import (
	"context"
	"fmt"

	"github.com/taskhive/api/model"
)

// MembershipStore routes membership lookups to the DAO owning the resource
// type. It is the datastore side of the decision cache's miss path.
type MembershipStore struct {
	Projects *ProjectDAO
	Tasks    *TaskDAO
}

func NewMembershipStore(projects *ProjectDAO, tasks *TaskDAO) *MembershipStore {
	return &MembershipStore{Projects: projects, Tasks: tasks}
}

func (s *MembershipStore) GetMembership(ctx context.Context, resourceType model.ResourceType, resourceID string) (*model.Membership, error) {
	switch resourceType {
	case model.ResourceProject:
		return s.Projects.GetMembership(ctx, resourceID)
	case model.ResourceTask:
		return s.Tasks.GetMembership(ctx, resourceID)
	}
	return nil, fmt.Errorf("unknown resource type: %q", resourceType)
}
