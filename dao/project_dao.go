// dao/project_dao.go
package dao

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/taskhive/api/audit"
	apierrors "github.com/taskhive/api/errors"
	logger "github.com/taskhive/api/logging"
	"github.com/taskhive/api/model"
	helper_util "github.com/taskhive/api/util/helper"
)

type ProjectDAO struct {
	Driver       neo4j.Driver
	AuditService audit.Service
}

func NewProjectDAO(driver neo4j.Driver, auditService audit.Service) *ProjectDAO {
	dao := &ProjectDAO{Driver: driver, AuditService: auditService}
	ctx := context.Background()
	if err := dao.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint for Project", zap.Error(err))
	}
	return dao
}

func (dao *ProjectDAO) EnsureUniqueConstraint(ctx context.Context) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_project_id IF NOT EXISTS
        FOR (p:Project) REQUIRE p.id IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		return nil, err
	})
	return err
}

func (dao *ProjectDAO) CreateProject(ctx context.Context, project model.Project) (string, error) {
	start := time.Now()
	logger.Info("Creating new project", zap.String("name", project.Name), zap.String("ownerID", project.OwnerID))
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if project.ID == "" {
		project.ID = uuid.New().String()
	}

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (owner:User {id: $ownerID})
        MERGE (p:Project {id: $id})
        ON CREATE SET p += $props
        MERGE (owner)-[:OWNS]->(p)
        RETURN p.id as id
        `

		params := map[string]interface{}{
			"id":      project.ID,
			"ownerID": project.OwnerID,
			"props": map[string]interface{}{
				"name":        project.Name,
				"description": project.Description,
				"ownerID":     project.OwnerID,
				"createdAt":   time.Now().Format(time.RFC3339),
				"updatedAt":   time.Now().Format(time.RFC3339),
			},
		}

		result, err := transaction.Run(query, params)
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			return result.Record().Values[0], nil
		}

		// No row means the owner node was not matched.
		return nil, apierrors.ErrUserNotFound
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to create project",
			zap.Error(err),
			zap.String("name", project.Name),
			zap.Duration("duration", duration))
		return "", err
	}

	projectID := result.(string)
	logger.Info("Project created successfully",
		zap.String("projectID", projectID),
		zap.Duration("duration", duration))

	details, _ := json.Marshal(map[string]string{"name": project.Name, "ownerID": project.OwnerID})
	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		UserID:        model.ActorFromContext(ctx),
		Action:        "CREATE_PROJECT",
		ResourceType:  string(model.ResourceProject),
		ResourceID:    projectID,
		AccessGranted: true,
		ChangeDetails: details,
	}
	if err := dao.AuditService.LogAccess(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return projectID, nil
}

func (dao *ProjectDAO) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:Project {id: $id})
        OPTIONAL MATCH (m:User)-[:MEMBER_OF]->(p)
        RETURN p, collect(m.id) as memberIDs
        `
		result, err := transaction.Run(query, map[string]interface{}{"id": projectID})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			record := result.Record()
			node := record.Values[0].(neo4j.Node)
			project, err := mapNodeToProject(node)
			if err != nil {
				return nil, err
			}
			project.MemberIDs = toStringSlice(record.Values[1])
			return project, nil
		}

		return nil, apierrors.ErrProjectNotFound
	})

	if err != nil {
		if err != apierrors.ErrProjectNotFound {
			logger.Error("Failed to get project", zap.Error(err), zap.String("projectID", projectID))
		}
		return nil, err
	}

	return result.(*model.Project), nil
}

// GetMembership returns the owner and member set for a project. This and
// SubjectExists are the only reads the auth core issues against the datastore.
func (dao *ProjectDAO) GetMembership(ctx context.Context, projectID string) (*model.Membership, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:Project {id: $id})
        OPTIONAL MATCH (m:User)-[:MEMBER_OF]->(p)
        RETURN p.ownerID as ownerID, collect(m.id) as memberIDs
        `
		result, err := transaction.Run(query, map[string]interface{}{"id": projectID})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			record := result.Record()
			ownerID, _ := record.Values[0].(string)
			return &model.Membership{
				OwnerID:   ownerID,
				MemberIDs: toStringSlice(record.Values[1]),
			}, nil
		}

		return nil, apierrors.ErrProjectNotFound
	})

	if err != nil {
		return nil, err
	}

	return result.(*model.Membership), nil
}

func (dao *ProjectDAO) UpdateProject(ctx context.Context, project model.Project) (*model.Project, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	var updated *model.Project
	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:Project {id: $id})
        SET p += $props
        RETURN p
        `
		params := map[string]interface{}{
			"id": project.ID,
			"props": map[string]interface{}{
				"name":        project.Name,
				"description": project.Description,
				"updatedAt":   time.Now().Format(time.RFC3339),
			},
		}

		result, err := transaction.Run(query, params)
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			node := result.Record().Values[0].(neo4j.Node)
			updated, err = mapNodeToProject(node)
			return nil, err
		}

		return nil, apierrors.ErrProjectNotFound
	})

	if err != nil {
		logger.Error("Failed to update project", zap.Error(err), zap.String("projectID", project.ID))
		return nil, err
	}

	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		UserID:        model.ActorFromContext(ctx),
		Action:        "UPDATE_PROJECT",
		ResourceType:  string(model.ResourceProject),
		ResourceID:    project.ID,
		AccessGranted: true,
	}
	if err := dao.AuditService.LogAccess(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return updated, nil
}

func (dao *ProjectDAO) DeleteProject(ctx context.Context, projectID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:Project {id: $id})
        OPTIONAL MATCH (t:Task)-[:BELONGS_TO]->(p)
        DETACH DELETE t, p
        RETURN count(p) as deleted
        `
		result, err := transaction.Run(query, map[string]interface{}{"id": projectID})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			if result.Record().Values[0].(int64) == 0 {
				return nil, apierrors.ErrProjectNotFound
			}
		}
		return nil, nil
	})

	if err != nil {
		logger.Error("Failed to delete project", zap.Error(err), zap.String("projectID", projectID))
		return err
	}

	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		UserID:        model.ActorFromContext(ctx),
		Action:        "DELETE_PROJECT",
		ResourceType:  string(model.ResourceProject),
		ResourceID:    projectID,
		AccessGranted: true,
	}
	if err := dao.AuditService.LogAccess(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return nil
}

// AddMember creates the MEMBER_OF relationship. The caller invalidates the
// decision cache after this commits.
func (dao *ProjectDAO) AddMember(ctx context.Context, projectID, userID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:Project {id: $projectID})
        MATCH (u:User {id: $userID})
        MERGE (u)-[:MEMBER_OF]->(p)
        RETURN p.id
        `
		result, err := transaction.Run(query, map[string]interface{}{
			"projectID": projectID,
			"userID":    userID,
		})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if !result.Next() {
			return nil, apierrors.ErrProjectNotFound
		}
		return nil, nil
	})

	if err != nil {
		logger.Error("Failed to add project member",
			zap.Error(err),
			zap.String("projectID", projectID),
			zap.String("userID", userID))
		return err
	}

	details, _ := json.Marshal(map[string]string{"memberID": userID})
	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		UserID:        model.ActorFromContext(ctx),
		Action:        "ADD_PROJECT_MEMBER",
		ResourceType:  string(model.ResourceProject),
		ResourceID:    projectID,
		AccessGranted: true,
		ChangeDetails: details,
	}
	if err := dao.AuditService.LogAccess(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return nil
}

func (dao *ProjectDAO) RemoveMember(ctx context.Context, projectID, userID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (u:User {id: $userID})-[r:MEMBER_OF]->(p:Project {id: $projectID})
        DELETE r
        RETURN count(r) as removed
        `
		result, err := transaction.Run(query, map[string]interface{}{
			"projectID": projectID,
			"userID":    userID,
		})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			if result.Record().Values[0].(int64) == 0 {
				return nil, apierrors.ErrProjectNotFound
			}
		}
		return nil, nil
	})

	if err != nil {
		logger.Error("Failed to remove project member",
			zap.Error(err),
			zap.String("projectID", projectID),
			zap.String("userID", userID))
		return err
	}

	details, _ := json.Marshal(map[string]string{"memberID": userID})
	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		UserID:        model.ActorFromContext(ctx),
		Action:        "REMOVE_PROJECT_MEMBER",
		ResourceType:  string(model.ResourceProject),
		ResourceID:    projectID,
		AccessGranted: true,
		ChangeDetails: details,
	}
	if err := dao.AuditService.LogAccess(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return nil
}

// TransferOwnership rewires the OWNS relationship and the denormalized
// ownerID property in one transaction.
func (dao *ProjectDAO) TransferOwnership(ctx context.Context, projectID, newOwnerID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:Project {id: $projectID})
        MATCH (newOwner:User {id: $newOwnerID})
        OPTIONAL MATCH (oldOwner:User)-[r:OWNS]->(p)
        DELETE r
        MERGE (newOwner)-[:OWNS]->(p)
        SET p.ownerID = $newOwnerID, p.updatedAt = $updatedAt
        RETURN p.id
        `
		result, err := transaction.Run(query, map[string]interface{}{
			"projectID":  projectID,
			"newOwnerID": newOwnerID,
			"updatedAt":  time.Now().Format(time.RFC3339),
		})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if !result.Next() {
			return nil, apierrors.ErrProjectNotFound
		}
		return nil, nil
	})

	if err != nil {
		logger.Error("Failed to transfer project ownership",
			zap.Error(err),
			zap.String("projectID", projectID),
			zap.String("newOwnerID", newOwnerID))
		return err
	}

	details, _ := json.Marshal(map[string]string{"newOwnerID": newOwnerID})
	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		UserID:        model.ActorFromContext(ctx),
		Action:        "TRANSFER_PROJECT_OWNERSHIP",
		ResourceType:  string(model.ResourceProject),
		ResourceID:    projectID,
		AccessGranted: true,
		ChangeDetails: details,
	}
	if err := dao.AuditService.LogAccess(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return nil
}

func (dao *ProjectDAO) ListProjectsForUser(ctx context.Context, userID string, limit, offset int) ([]*model.Project, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (u:User {id: $userID})
        MATCH (p:Project)
        WHERE (u)-[:OWNS]->(p) OR (u)-[:MEMBER_OF]->(p)
        RETURN p
        ORDER BY p.createdAt
        SKIP $offset LIMIT $limit
        `
		result, err := transaction.Run(query, map[string]interface{}{
			"userID": userID,
			"limit":  limit,
			"offset": offset,
		})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		var projects []*model.Project
		for result.Next() {
			node := result.Record().Values[0].(neo4j.Node)
			project, err := mapNodeToProject(node)
			if err != nil {
				return nil, err
			}
			projects = append(projects, project)
		}
		return projects, nil
	})

	if err != nil {
		logger.Error("Failed to list projects", zap.Error(err), zap.String("userID", userID))
		return nil, err
	}

	return result.([]*model.Project), nil
}

func mapNodeToProject(node neo4j.Node) (*model.Project, error) {
	props := node.Props

	project := &model.Project{
		ID:          getStringProp(props, "id"),
		Name:        getStringProp(props, "name"),
		Description: getStringProp(props, "description"),
		OwnerID:     getStringProp(props, "ownerID"),
	}

	if createdAt, err := helper_util.ParseTime(getStringProp(props, "createdAt")); err == nil {
		project.CreatedAt = createdAt
	}
	if updatedAt, err := helper_util.ParseTime(getStringProp(props, "updatedAt")); err == nil {
		project.UpdatedAt = updatedAt
	}

	return project, nil
}

func toStringSlice(value interface{}) []string {
	items, ok := value.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
