// token/service.go
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskhive/api/db"
	apierrors "github.com/taskhive/api/errors"
	logger "github.com/taskhive/api/logging"
	"github.com/taskhive/api/model"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Claims carries the identity inside a signed token. The identity is fixed at
// issuance; a fresh one is read from the datastore for each new pair.
type Claims struct {
	Role       string `json:"role"`
	Profession string `json:"profession,omitempty"`
	TokenType  string `json:"typ"`
	jwt.RegisteredClaims
}

// IService defines the token lifecycle operations
type IService interface {
	Issue(ctx context.Context, identity model.Identity) (*model.TokenPair, error)
	Verify(ctx context.Context, accessToken string) (*model.Identity, error)
	ValidateRefresh(ctx context.Context, refreshToken string) (string, error)
	Rotate(ctx context.Context, refreshToken string, identity model.Identity) (*model.TokenPair, error)
	Revoke(ctx context.Context, accessToken string, identity model.Identity) error
}

// Service issues, verifies, rotates and revokes bearer credentials. Access
// tokens are stateless apart from the revocation registry; refresh tokens are
// additionally registered in the cache store keyed by subject so they can be
// revoked before natural expiry.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	cache      *db.CacheStore
}

var _ IService = &Service{}

func NewService(secret string, accessTTL, refreshTTL time.Duration, cache *db.CacheStore) (*Service, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 characters")
	}
	return &Service{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		cache:      cache,
	}, nil
}

func blacklistKey(token string) string {
	return "blacklist:" + token
}

func refreshKey(subjectID string) string {
	return "refresh:" + subjectID
}

func (s *Service) sign(identity model.Identity, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:       string(identity.Role),
		Profession: identity.Profession,
		TokenType:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			// The unique ID keeps two tokens signed for the same subject in
			// the same second from being byte-identical, which the rotation
			// registry's compare-and-swap depends on.
			ID:        uuid.New().String(),
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(tokenString, expectedType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apierrors.ErrUnauthenticated
	}
	if claims.TokenType != expectedType {
		return nil, apierrors.ErrUnauthenticated
	}
	if _, err := model.ParseRole(claims.Role); err != nil {
		return nil, apierrors.ErrUnauthenticated
	}
	return claims, nil
}

// Issue builds a signed access/refresh pair and records the refresh token in
// the registry, overwriting any prior record for the subject. The overwrite
// is what keeps at most one live refresh token per subject.
func (s *Service) Issue(ctx context.Context, identity model.Identity) (*model.TokenPair, error) {
	accessToken, err := s.sign(identity, typeAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.sign(identity, typeRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, refreshKey(identity.ID), refreshToken, s.refreshTTL); err != nil {
		logger.Error("Failed to register refresh token", zap.Error(err), zap.String("subjectID", identity.ID))
		return nil, err
	}

	return &model.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Verify checks structure, signature, expiry, then the revocation registry,
// in that order. Every failure collapses into ErrUnauthenticated so a caller
// cannot tell which stage tripped. An unreachable registry also fails closed:
// a revocation check that silently passes would defeat the blacklist.
func (s *Service) Verify(ctx context.Context, accessToken string) (*model.Identity, error) {
	claims, err := s.parse(accessToken, typeAccess)
	if err != nil {
		return nil, apierrors.ErrUnauthenticated
	}

	_, err = s.cache.Get(ctx, blacklistKey(accessToken))
	if err == nil {
		// Present in the blacklist: revoked.
		return nil, apierrors.ErrUnauthenticated
	}
	if !errors.Is(err, db.ErrCacheMiss) {
		logger.Error("Revocation check failed, failing closed", zap.Error(err))
		return nil, apierrors.ErrUnauthenticated
	}

	role, _ := model.ParseRole(claims.Role)
	return &model.Identity{
		ID:         claims.Subject,
		Role:       role,
		Profession: claims.Profession,
	}, nil
}

// ValidateRefresh checks a refresh token's signature, expiry and type and
// returns the subject it was issued to. The registry match happens atomically
// inside Rotate, not here.
func (s *Service) ValidateRefresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.parse(refreshToken, typeRefresh)
	if err != nil {
		return "", apierrors.ErrUnauthenticated
	}
	return claims.Subject, nil
}

// Rotate atomically replaces the registry record with a newly issued refresh
// token, but only while the record still equals the presented token. Of two
// concurrent calls presenting the same token exactly one observes a match;
// the loser gets ErrTokenConflict. A replayed, already-rotated token fails
// the same way.
func (s *Service) Rotate(ctx context.Context, refreshToken string, identity model.Identity) (*model.TokenPair, error) {
	accessToken, err := s.sign(identity, typeAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	newRefresh, err := s.sign(identity, typeRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	ok, err := s.cache.SetIfMatch(ctx, refreshKey(identity.ID), refreshToken, newRefresh, s.refreshTTL)
	if err != nil {
		logger.Error("Failed to rotate refresh token", zap.Error(err), zap.String("subjectID", identity.ID))
		return nil, err
	}
	if !ok {
		logger.Warn("Refresh token rotation lost the race or was replayed", zap.String("subjectID", identity.ID))
		return nil, apierrors.ErrTokenConflict
	}

	return &model.TokenPair{AccessToken: accessToken, RefreshToken: newRefresh}, nil
}

// Revoke blacklists the access token for exactly its remaining signature-valid
// lifetime and deletes the subject's refresh registry record. An already
// expired token needs no blacklist entry.
func (s *Service) Revoke(ctx context.Context, accessToken string, identity model.Identity) error {
	remaining := s.remainingLifetime(accessToken)
	if remaining > 0 {
		if err := s.cache.Set(ctx, blacklistKey(accessToken), "revoked", remaining); err != nil {
			logger.Error("Failed to blacklist access token", zap.Error(err), zap.String("subjectID", identity.ID))
			return err
		}
	}

	if err := s.cache.Delete(ctx, refreshKey(identity.ID)); err != nil {
		logger.Error("Failed to delete refresh registry record", zap.Error(err), zap.String("subjectID", identity.ID))
		return err
	}

	logger.Info("Token revoked", zap.String("subjectID", identity.ID))
	return nil
}

// remainingLifetime decodes the token's expiry without enforcing it. Revoking
// an expired or even malformed token is a no-op, not an error.
func (s *Service) remainingLifetime(tokenString string) time.Duration {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	_, _, err := parser.ParseUnverified(tokenString, claims)
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	return time.Until(claims.ExpiresAt.Time)
}
