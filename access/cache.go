// access/cache.go
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taskhive/api/db"
	apierrors "github.com/taskhive/api/errors"
	logger "github.com/taskhive/api/logging"
	"github.com/taskhive/api/model"
)

// MembershipReader is the only contract the decision cache needs from the
// primary datastore.
type MembershipReader interface {
	GetMembership(ctx context.Context, resourceType model.ResourceType, resourceID string) (*model.Membership, error)
}

// ICache defines the decision-cache operations
type ICache interface {
	Check(ctx context.Context, subjectID string, resourceType model.ResourceType, resourceID string) (model.Decision, error)
	Invalidate(ctx context.Context, resourceType model.ResourceType, resourceID string) error
}

// Cache memoizes subject→resource authorization decisions. Entries are keyed
// with the resource before the subject so invalidating a resource is a single
// prefix delete, regardless of which subjects hold cached decisions for it.
type Cache struct {
	cache      *db.CacheStore
	store      MembershipReader
	projectTTL time.Duration
	taskTTL    time.Duration
}

var _ ICache = &Cache{}

func NewCache(cacheStore *db.CacheStore, store MembershipReader, projectTTL, taskTTL time.Duration) *Cache {
	return &Cache{
		cache:      cacheStore,
		store:      store,
		projectTTL: projectTTL,
		taskTTL:    taskTTL,
	}
}

func decisionKey(resourceType model.ResourceType, resourceID, subjectID string) string {
	return fmt.Sprintf("access:%s:%s:%s", resourceType, resourceID, subjectID)
}

func decisionPrefix(resourceType model.ResourceType, resourceID string) string {
	return fmt.Sprintf("access:%s:%s:", resourceType, resourceID)
}

// ttlFor bounds staleness per resource type. Task decisions inherit project
// membership transitively and are considered less stable, so they expire
// sooner; this is the mitigation for project-level changes not cascading to
// cached task decisions.
func (c *Cache) ttlFor(resourceType model.ResourceType) time.Duration {
	if resourceType == model.ResourceTask {
		return c.taskTTL
	}
	return c.projectTTL
}

// Check returns the cached decision for (subject, resource), resolving a miss
// from the datastore's membership. If the cache store is unreachable the
// decision is computed directly and not cached: authorization availability is
// never coupled to cache availability, and neither blind-allow nor blind-deny
// is acceptable.
func (c *Cache) Check(ctx context.Context, subjectID string, resourceType model.ResourceType, resourceID string) (model.Decision, error) {
	key := decisionKey(resourceType, resourceID, subjectID)

	val, err := c.cache.Get(ctx, key)
	if err == nil {
		switch model.Decision(val) {
		case model.DecisionAllow, model.DecisionDeny:
			logger.Debug("Decision cache hit",
				zap.String("key", key),
				zap.String("decision", val))
			return model.Decision(val), nil
		}
		// Unrecognized sentinel: treat as a miss and recompute.
		logger.Warn("Unrecognized decision sentinel, recomputing", zap.String("key", key), zap.String("value", val))
	}

	cacheable := errors.Is(err, db.ErrCacheMiss) || err == nil
	if err != nil && !errors.Is(err, db.ErrCacheMiss) {
		logger.Warn("Decision cache unreachable, resolving from datastore", zap.Error(err))
	}

	decision, err := c.resolve(ctx, subjectID, resourceType, resourceID)
	if err != nil {
		return "", err
	}

	if cacheable {
		if err := c.cache.Set(ctx, key, string(decision), c.ttlFor(resourceType)); err != nil {
			// The decision is still valid; only memoization failed.
			logger.Warn("Failed to cache decision", zap.Error(err), zap.String("key", key))
		}
	}

	return decision, nil
}

func (c *Cache) resolve(ctx context.Context, subjectID string, resourceType model.ResourceType, resourceID string) (model.Decision, error) {
	membership, err := c.store.GetMembership(ctx, resourceType, resourceID)
	if err != nil {
		if errors.Is(err, apierrors.ErrProjectNotFound) || errors.Is(err, apierrors.ErrTaskNotFound) {
			return model.DecisionDeny, nil
		}
		return "", fmt.Errorf("failed to resolve membership: %w", err)
	}

	if membership.Contains(subjectID) {
		return model.DecisionAllow, nil
	}
	return model.DecisionDeny, nil
}

// Invalidate purges every cached decision for a resource. Handlers must call
// this strictly after their membership-mutating write commits, never before.
func (c *Cache) Invalidate(ctx context.Context, resourceType model.ResourceType, resourceID string) error {
	prefix := decisionPrefix(resourceType, resourceID)
	if err := c.cache.DeleteByPrefix(ctx, prefix); err != nil {
		logger.Error("Failed to invalidate decisions",
			zap.Error(err),
			zap.String("resourceType", string(resourceType)),
			zap.String("resourceID", resourceID))
		return err
	}

	logger.Debug("Invalidated decisions",
		zap.String("resourceType", string(resourceType)),
		zap.String("resourceID", resourceID))
	return nil
}
