// dao/task_dao.go
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

type TaskDAO struct {
	Driver       neo4j.Driver
	AuditService audit.Service
}

func NewTaskDAO(driver neo4j.Driver, auditService audit.Service) *TaskDAO {
	dao := &TaskDAO{Driver: driver, AuditService: auditService}
	ctx := context.Background()
	if err := dao.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint for Task", zap.Error(err))
	}
	return dao
}

func (dao *TaskDAO) EnsureUniqueConstraint(ctx context.Context) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_task_id IF NOT EXISTS
        FOR (t:Task) REQUIRE t.id IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		return nil, err
	})
	return err
}

func (dao *TaskDAO) CreateTask(ctx context.Context, task model.Task) (string, error) {
	start := time.Now()
	logger.Info("Creating new task", zap.String("title", task.Title), zap.String("projectID", task.ProjectID))
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = model.TaskStatusOpen
	}

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:Project {id: $projectID})
        MERGE (t:Task {id: $id})
        ON CREATE SET t += $props
        MERGE (t)-[:BELONGS_TO]->(p)
        RETURN t.id as id
        `

		params := map[string]interface{}{
			"id":        task.ID,
			"projectID": task.ProjectID,
			"props": map[string]interface{}{
				"title":       task.Title,
				"description": task.Description,
				"status":      string(task.Status),
				"projectID":   task.ProjectID,
				"assigneeID":  task.AssigneeID,
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

		return nil, apierrors.ErrProjectNotFound
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to create task",
			zap.Error(err),
			zap.String("title", task.Title),
			zap.Duration("duration", duration))
		return "", err
	}

	taskID := result.(string)
	logger.Info("Task created successfully",
		zap.String("taskID", taskID),
		zap.Duration("duration", duration))

	details, _ := json.Marshal(map[string]string{"title": task.Title, "projectID": task.ProjectID})
	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		UserID:        model.ActorFromContext(ctx),
		Action:        "CREATE_TASK",
		ResourceType:  string(model.ResourceTask),
		ResourceID:    taskID,
		AccessGranted: true,
		ChangeDetails: details,
	}
	if err := dao.AuditService.LogAccess(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return taskID, nil
}

func (dao *TaskDAO) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (t:Task {id: $id})
        RETURN t
        `
		result, err := transaction.Run(query, map[string]interface{}{"id": taskID})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			node := result.Record().Values[0].(neo4j.Node)
			return mapNodeToTask(node)
		}

		return nil, apierrors.ErrTaskNotFound
	})

	if err != nil {
		if err != apierrors.ErrTaskNotFound {
			logger.Error("Failed to get task", zap.Error(err), zap.String("taskID", taskID))
		}
		return nil, err
	}

	return result.(*model.Task), nil
}

// GetMembership resolves who may access a task: the parent project's owner
// and members, plus the task's assignee. Task access is derived, never stored.
func (dao *TaskDAO) GetMembership(ctx context.Context, taskID string) (*model.Membership, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (t:Task {id: $id})-[:BELONGS_TO]->(p:Project)
        OPTIONAL MATCH (m:User)-[:MEMBER_OF]->(p)
        RETURN p.ownerID as ownerID, collect(m.id) as memberIDs, t.assigneeID as assigneeID
        `
		result, err := transaction.Run(query, map[string]interface{}{"id": taskID})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			record := result.Record()
			ownerID, _ := record.Values[0].(string)
			memberIDs := toStringSlice(record.Values[1])
			if assigneeID, ok := record.Values[2].(string); ok && assigneeID != "" {
				memberIDs = append(memberIDs, assigneeID)
			}
			return &model.Membership{OwnerID: ownerID, MemberIDs: memberIDs}, nil
		}

		return nil, apierrors.ErrTaskNotFound
	})

	if err != nil {
		return nil, err
	}

	return result.(*model.Membership), nil
}

func (dao *TaskDAO) UpdateTask(ctx context.Context, task model.Task) (*model.Task, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	var updated *model.Task
	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (t:Task {id: $id})
        SET t += $props
        RETURN t
        `
		params := map[string]interface{}{
			"id": task.ID,
			"props": map[string]interface{}{
				"title":       task.Title,
				"description": task.Description,
				"status":      string(task.Status),
				"updatedAt":   time.Now().Format(time.RFC3339),
			},
		}

		result, err := transaction.Run(query, params)
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			node := result.Record().Values[0].(neo4j.Node)
			updated, err = mapNodeToTask(node)
			return nil, err
		}

		return nil, apierrors.ErrTaskNotFound
	})

	if err != nil {
		logger.Error("Failed to update task", zap.Error(err), zap.String("taskID", task.ID))
		return nil, err
	}

	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		UserID:        model.ActorFromContext(ctx),
		Action:        "UPDATE_TASK",
		ResourceType:  string(model.ResourceTask),
		ResourceID:    task.ID,
		AccessGranted: true,
	}
	if err := dao.AuditService.LogAccess(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return updated, nil
}

// AssignTask sets the assignee and rewires the ASSIGNED_TO relationship.
func (dao *TaskDAO) AssignTask(ctx context.Context, taskID, assigneeID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (t:Task {id: $taskID})
        MATCH (u:User {id: $assigneeID})
        OPTIONAL MATCH (prev:User)-[r:ASSIGNED_TO]->(t)
        DELETE r
        MERGE (u)-[:ASSIGNED_TO]->(t)
        SET t.assigneeID = $assigneeID, t.updatedAt = $updatedAt
        RETURN t.id
        `
		result, err := transaction.Run(query, map[string]interface{}{
			"taskID":     taskID,
			"assigneeID": assigneeID,
			"updatedAt":  time.Now().Format(time.RFC3339),
		})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if !result.Next() {
			return nil, apierrors.ErrTaskNotFound
		}
		return nil, nil
	})

	if err != nil {
		logger.Error("Failed to assign task",
			zap.Error(err),
			zap.String("taskID", taskID),
			zap.String("assigneeID", assigneeID))
		return err
	}

	details, _ := json.Marshal(map[string]string{"assigneeID": assigneeID})
	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		UserID:        model.ActorFromContext(ctx),
		Action:        "ASSIGN_TASK",
		ResourceType:  string(model.ResourceTask),
		ResourceID:    taskID,
		AccessGranted: true,
		ChangeDetails: details,
	}
	if err := dao.AuditService.LogAccess(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return nil
}

func (dao *TaskDAO) DeleteTask(ctx context.Context, taskID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (t:Task {id: $id})
        DETACH DELETE t
        RETURN count(t) as deleted
        `
		result, err := transaction.Run(query, map[string]interface{}{"id": taskID})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			if result.Record().Values[0].(int64) == 0 {
				return nil, apierrors.ErrTaskNotFound
			}
		}
		return nil, nil
	})

	if err != nil {
		logger.Error("Failed to delete task", zap.Error(err), zap.String("taskID", taskID))
		return err
	}

	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		UserID:        model.ActorFromContext(ctx),
		Action:        "DELETE_TASK",
		ResourceType:  string(model.ResourceTask),
		ResourceID:    taskID,
		AccessGranted: true,
	}
	if err := dao.AuditService.LogAccess(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return nil
}

func (dao *TaskDAO) ListTasksForProject(ctx context.Context, projectID string, limit, offset int) ([]*model.Task, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (t:Task)-[:BELONGS_TO]->(p:Project {id: $projectID})
        RETURN t
        ORDER BY t.createdAt
        SKIP $offset LIMIT $limit
        `
		result, err := transaction.Run(query, map[string]interface{}{
			"projectID": projectID,
			"limit":     limit,
			"offset":    offset,
		})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		var tasks []*model.Task
		for result.Next() {
			node := result.Record().Values[0].(neo4j.Node)
			task, err := mapNodeToTask(node)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
		return tasks, nil
	})

	if err != nil {
		logger.Error("Failed to list tasks", zap.Error(err), zap.String("projectID", projectID))
		return nil, err
	}

	return result.([]*model.Task), nil
}

func mapNodeToTask(node neo4j.Node) (*model.Task, error) {
	props := node.Props

	task := &model.Task{
		ID:          getStringProp(props, "id"),
		ProjectID:   getStringProp(props, "projectID"),
		Title:       getStringProp(props, "title"),
		Description: getStringProp(props, "description"),
		Status:      model.TaskStatus(getStringProp(props, "status")),
		AssigneeID:  getStringProp(props, "assigneeID"),
	}

	if createdAt, err := helper_util.ParseTime(getStringProp(props, "createdAt")); err == nil {
		task.CreatedAt = createdAt
	}
	if updatedAt, err := helper_util.ParseTime(getStringProp(props, "updatedAt")); err == nil {
		task.UpdatedAt = updatedAt
	}

	return task, nil
}
