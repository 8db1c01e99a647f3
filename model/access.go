// model/access.go
package model

import "fmt"

// Role is the closed set of privilege levels a user can hold.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// ParseRole rejects unknown roles at the boundary so an unrecognized
// role never reaches an authorization check.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleMember:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// ResourceType is the closed set of resource kinds access decisions are cached for.
type ResourceType string

const (
	ResourceProject ResourceType = "project"
	ResourceTask    ResourceType = "task"
)

func ParseResourceType(s string) (ResourceType, error) {
	switch ResourceType(s) {
	case ResourceProject, ResourceTask:
		return ResourceType(s), nil
	}
	return "", fmt.Errorf("unknown resource type: %q", s)
}

// Decision is a memoized authorization verdict. Allow and deny are distinct
// sentinel values so a cache miss is unambiguous from either cached outcome.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

func (d Decision) Allowed() bool {
	return d == DecisionAllow
}

// Membership is the datastore's view of who may access a resource.
type Membership struct {
	OwnerID   string   `json:"owner_id"`
	MemberIDs []string `json:"member_ids"`
}

// Contains reports whether the subject is the owner or a member.
func (m Membership) Contains(subjectID string) bool {
	if subjectID == m.OwnerID {
		return true
	}
	for _, id := range m.MemberIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}

// TokenPair is the credential pair returned by login, registration and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
