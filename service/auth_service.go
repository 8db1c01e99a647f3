// service/auth_service.go
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskhive/api/dao"
	apierrors "github.com/taskhive/api/errors"
	logger "github.com/taskhive/api/logging"
	"github.com/taskhive/api/model"
	"github.com/taskhive/api/token"
	"github.com/taskhive/api/util"
)

// IAuthService defines the interface for credential lifecycle operations
type IAuthService interface {
	Register(ctx context.Context, user model.User, password string) (*model.User, *model.TokenPair, error)
	Login(ctx context.Context, username, password string) (*model.User, *model.TokenPair, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error)
}

// AuthService owns registration, login, logout and token refresh. It is the
// only caller of the token service's issue/rotate/revoke operations.
type AuthService struct {
	userDAO        *dao.UserDAO
	tokens         token.IService
	validationUtil *util.ValidationUtil
	eventBus       *util.EventBus
}

var _ IAuthService = &AuthService{}

func NewAuthService(userDAO *dao.UserDAO, tokens token.IService, validationUtil *util.ValidationUtil, eventBus *util.EventBus) *AuthService {
	return &AuthService{
		userDAO:        userDAO,
		tokens:         tokens,
		validationUtil: validationUtil,
		eventBus:       eventBus,
	}
}

// Register creates the account and logs it straight in.
func (s *AuthService) Register(ctx context.Context, user model.User, password string) (*model.User, *model.TokenPair, error) {
	if err := s.validationUtil.ValidateCredentials(user.Username, password); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apierrors.ErrInvalidUserData, err)
	}
	if user.Role == "" {
		user.Role = model.RoleMember
	}
	if err := s.validationUtil.ValidateUser(user); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apierrors.ErrInvalidUserData, err)
	}

	if _, err := s.userDAO.GetUserByUsername(ctx, user.Username); err == nil {
		return nil, nil, apierrors.ErrUserConflict
	} else if !errors.Is(err, apierrors.ErrUserNotFound) {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	userID, err := s.userDAO.CreateUser(ctx, user)
	if err != nil {
		logger.Error("Error creating user", zap.Error(err), zap.String("username", user.Username))
		return nil, nil, err
	}
	user.ID = userID

	pair, err := s.tokens.Issue(ctx, user.Identity())
	if err != nil {
		return nil, nil, err
	}

	s.eventBus.Publish(ctx, "user.registered", user)
	logger.Info("User registered", zap.String("userID", userID))
	return &user, pair, nil
}

// Login verifies the password and issues a fresh token pair. The identity in
// the tokens is read from the datastore here, never from an older token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.User, *model.TokenPair, error) {
	user, err := s.userDAO.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apierrors.ErrUserNotFound) {
			return nil, nil, apierrors.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.Warn("Login failed", zap.String("username", username))
		return nil, nil, apierrors.ErrInvalidCredentials
	}

	pair, err := s.tokens.Issue(ctx, user.Identity())
	if err != nil {
		return nil, nil, err
	}

	logger.Info("User logged in", zap.String("userID", user.ID))
	return user, pair, nil
}

// Logout blacklists the presented access token for its remaining lifetime and
// deletes the refresh registry record, taking both credentials out of
// circulation immediately.
func (s *AuthService) Logout(ctx context.Context) error {
	auth, ok := model.RequestAuthFromContext(ctx)
	if !ok {
		return apierrors.ErrUnauthenticated
	}

	if err := s.tokens.Revoke(ctx, auth.RawToken, auth.Identity); err != nil {
		return err
	}

	logger.Info("User logged out", zap.String("userID", auth.Identity.ID))
	return nil
}

// Refresh validates the refresh token, re-reads the subject from the
// datastore and rotates the registry record. Exactly one of two concurrent
// calls with the same token succeeds.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	subjectID, err := s.tokens.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userDAO.GetUser(ctx, subjectID)
	if err != nil {
		if errors.Is(err, apierrors.ErrUserNotFound) {
			return nil, apierrors.ErrUnauthenticated
		}
		return nil, err
	}

	pair, err := s.tokens.Rotate(ctx, refreshToken, user.Identity())
	if err != nil {
		return nil, err
	}

	logger.Info("Token pair refreshed", zap.String("userID", user.ID))
	return pair, nil
}
