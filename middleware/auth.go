// middleware/auth.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	logger "github.com/taskhive/api/logging"
	"github.com/taskhive/api/model"
)

// TokenVerifier is the part of the token service the auth gate needs.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (*model.Identity, error)
}

// SubjectChecker is the datastore lookup that rejects deleted accounts still
// holding a signature-valid token.
type SubjectChecker interface {
	SubjectExists(ctx context.Context, subjectID string) (bool, error)
}

type AuthMiddleware struct {
	tokens TokenVerifier
	users  SubjectChecker
}

func NewAuthMiddleware(tokens TokenVerifier, users SubjectChecker) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handler gates every authenticated route. Checks run in a fixed order:
// header present, token non-empty, token verifies, subject still exists.
// Every failure is the same 401 so a caller cannot probe which stage tripped.
func (m *AuthMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		rawToken := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if rawToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		identity, err := m.tokens.Verify(c.Request.Context(), rawToken)
		if err != nil {
			logger.Warn("Token verification failed", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		exists, err := m.users.SubjectExists(c.Request.Context(), identity.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if !exists {
			logger.Warn("Token subject no longer exists", zap.String("subjectID", identity.ID))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		auth := model.RequestAuth{
			Identity:      *identity,
			RawToken:      rawToken,
			CorrelationID: uuid.New().String(),
		}
		c.Request = c.Request.WithContext(model.WithRequestAuth(c.Request.Context(), auth))
		c.Header("X-Request-ID", auth.CorrelationID)

		c.Next()
	}
}

// GetRequestAuth reads the auth facts attached by Handler.
func GetRequestAuth(c *gin.Context) (model.RequestAuth, bool) {
	return model.RequestAuthFromContext(c.Request.Context())
}
