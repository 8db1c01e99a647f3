// dao/user_dao.go
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

type UserDAO struct {
	Driver       neo4j.Driver
	AuditService audit.Service
}

func NewUserDAO(driver neo4j.Driver, auditService audit.Service) *UserDAO {
	dao := &UserDAO{Driver: driver, AuditService: auditService}
	// Ensure unique constraint on User ID
	ctx := context.Background()
	if err := dao.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint for User", zap.Error(err))
	}
	return dao
}

func (dao *UserDAO) EnsureUniqueConstraint(ctx context.Context) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_user_id IF NOT EXISTS
        FOR (u:User) REQUIRE u.id IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		return nil, err
	})
	return err
}

func (dao *UserDAO) CreateUser(ctx context.Context, user model.User) (string, error) {
	start := time.Now()
	logger.Info("Creating new user", zap.String("username", user.Username))
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MERGE (u:User {id: $id})
        ON CREATE SET u += $props
        ON MATCH SET u += $props
        RETURN u.id as id
        `

		params := map[string]interface{}{
			"id": user.ID,
			"props": map[string]interface{}{
				"name":         user.Name,
				"username":     user.Username,
				"email":        user.Email,
				"passwordHash": user.PasswordHash,
				"role":         string(user.Role),
				"profession":   user.Profession,
				"createdAt":    time.Now().Format(time.RFC3339),
				"updatedAt":    time.Now().Format(time.RFC3339),
			},
		}

		result, err := transaction.Run(query, params)
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			return result.Record().Values[0], nil
		}

		return nil, apierrors.ErrInternalServer
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to create user",
			zap.Error(err),
			zap.String("username", user.Username),
			zap.Duration("duration", duration))
		return "", err
	}

	userID := result.(string)
	logger.Info("User created successfully",
		zap.String("userID", userID),
		zap.Duration("duration", duration))

	details, _ := json.Marshal(map[string]string{"username": user.Username})
	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		UserID:        model.ActorFromContext(ctx),
		Action:        "CREATE_USER",
		ResourceID:    userID,
		AccessGranted: true,
		ChangeDetails: details,
	}
	if err := dao.AuditService.LogAccess(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return userID, nil
}

func (dao *UserDAO) GetUser(ctx context.Context, userID string) (*model.User, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (u:User {id: $id})
        RETURN u
        `
		result, err := transaction.Run(query, map[string]interface{}{"id": userID})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			node := result.Record().Values[0].(neo4j.Node)
			return mapNodeToUser(node)
		}

		return nil, apierrors.ErrUserNotFound
	})

	if err != nil {
		if err != apierrors.ErrUserNotFound {
			logger.Error("Failed to get user", zap.Error(err), zap.String("userID", userID))
		}
		return nil, err
	}

	return result.(*model.User), nil
}

func (dao *UserDAO) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (u:User {username: $username})
        RETURN u
        `
		result, err := transaction.Run(query, map[string]interface{}{"username": username})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			node := result.Record().Values[0].(neo4j.Node)
			return mapNodeToUser(node)
		}

		return nil, apierrors.ErrUserNotFound
	})

	if err != nil {
		return nil, err
	}

	return result.(*model.User), nil
}

// SubjectExists reports whether the subject still exists in the datastore.
// The auth middleware calls this so a deleted account holding a still-valid
// token is rejected.
func (dao *UserDAO) SubjectExists(ctx context.Context, subjectID string) (bool, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (u:User {id: $id})
        RETURN count(u) > 0 as exists
        `
		result, err := transaction.Run(query, map[string]interface{}{"id": subjectID})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			return result.Record().Values[0], nil
		}

		return false, nil
	})

	if err != nil {
		logger.Error("Failed to check subject existence", zap.Error(err), zap.String("subjectID", subjectID))
		return false, err
	}

	return result.(bool), nil
}

func (dao *UserDAO) UpdateUser(ctx context.Context, user model.User) (*model.User, error) {
	start := time.Now()
	logger.Info("Updating user", zap.String("userID", user.ID))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	var updatedUser *model.User
	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (u:User {id: $id})
        SET u += $props
        RETURN u
        `

		params := map[string]interface{}{
			"id": user.ID,
			"props": map[string]interface{}{
				"name":       user.Name,
				"email":      user.Email,
				"role":       string(user.Role),
				"profession": user.Profession,
				"updatedAt":  time.Now().Format(time.RFC3339),
			},
		}

		result, err := transaction.Run(query, params)
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			node := result.Record().Values[0].(neo4j.Node)
			updatedUser, err = mapNodeToUser(node)
			if err != nil {
				return nil, err
			}
			return nil, nil
		}

		return nil, apierrors.ErrUserNotFound
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to update user",
			zap.Error(err),
			zap.String("userID", user.ID),
			zap.Duration("duration", duration))
		return nil, err
	}

	logger.Info("User updated successfully",
		zap.String("userID", user.ID),
		zap.Duration("duration", duration))

	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		UserID:        model.ActorFromContext(ctx),
		Action:        "UPDATE_USER",
		ResourceID:    user.ID,
		AccessGranted: true,
	}
	if err := dao.AuditService.LogAccess(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return updatedUser, nil
}

func (dao *UserDAO) DeleteUser(ctx context.Context, userID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (u:User {id: $id})
        DETACH DELETE u
        RETURN count(u) as deleted
        `
		result, err := transaction.Run(query, map[string]interface{}{"id": userID})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		if result.Next() {
			if result.Record().Values[0].(int64) == 0 {
				return nil, apierrors.ErrUserNotFound
			}
		}
		return nil, nil
	})

	if err != nil {
		logger.Error("Failed to delete user", zap.Error(err), zap.String("userID", userID))
		return err
	}

	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		UserID:        model.ActorFromContext(ctx),
		Action:        "DELETE_USER",
		ResourceID:    userID,
		AccessGranted: true,
	}
	if err := dao.AuditService.LogAccess(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return nil
}

func (dao *UserDAO) ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (u:User)
        RETURN u
        ORDER BY u.createdAt
        SKIP $offset LIMIT $limit
        `
		result, err := transaction.Run(query, map[string]interface{}{"limit": limit, "offset": offset})
		if err != nil {
			return nil, apierrors.ErrDatabaseOperation
		}

		var users []*model.User
		for result.Next() {
			node := result.Record().Values[0].(neo4j.Node)
			user, err := mapNodeToUser(node)
			if err != nil {
				return nil, err
			}
			users = append(users, user)
		}
		return users, nil
	})

	if err != nil {
		logger.Error("Failed to list users", zap.Error(err))
		return nil, err
	}

	return result.([]*model.User), nil
}

func mapNodeToUser(node neo4j.Node) (*model.User, error) {
	props := node.Props

	user := &model.User{
		ID:           getStringProp(props, "id"),
		Name:         getStringProp(props, "name"),
		Username:     getStringProp(props, "username"),
		Email:        getStringProp(props, "email"),
		PasswordHash: getStringProp(props, "passwordHash"),
		Profession:   getStringProp(props, "profession"),
	}

	role, err := model.ParseRole(getStringProp(props, "role"))
	if err != nil {
		return nil, apierrors.ErrInvalidUserData
	}
	user.Role = role

	if createdAt, err := helper_util.ParseTime(getStringProp(props, "createdAt")); err == nil {
		user.CreatedAt = createdAt
	}
	if updatedAt, err := helper_util.ParseTime(getStringProp(props, "updatedAt")); err == nil {
		user.UpdatedAt = updatedAt
	}

	return user, nil
}

func getStringProp(props map[string]interface{}, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}
