// db/cache_store.go
package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	apierrors "github.com/taskhive/api/errors"
	logger "github.com/taskhive/api/logging"
)

// ErrCacheMiss reports that a key is absent. It is distinct from
// apierrors.ErrCacheUnavailable so callers can tell a miss from an outage.
var ErrCacheMiss = errors.New("cache miss")

const maxConnectBackoff = 5 * time.Second

// CacheStore wraps the shared Redis connection used for the token revocation
// registry, the refresh-token registry and the access-decision cache. One
// instance is constructed at process start and injected into every component
// that needs it; the underlying connection is established lazily on first use
// or by an explicit Connect call.
type CacheStore struct {
	opts              *redis.Options
	opTimeout         time.Duration
	maxConnectRetries int

	mu     sync.Mutex
	client *redis.Client
}

func NewCacheStore() *CacheStore {
	return &CacheStore{
		opts: &redis.Options{
			Addr:         viper.GetString("redis.addr"),
			Password:     viper.GetString("redis.password"),
			DB:           viper.GetInt("redis.db"),
			DialTimeout:  viper.GetDuration("redis.dialTimeout"),
			ReadTimeout:  viper.GetDuration("redis.readTimeout"),
			WriteTimeout: viper.GetDuration("redis.writeTimeout"),
			PoolSize:     viper.GetInt("redis.poolSize"),
			PoolTimeout:  viper.GetDuration("redis.poolTimeout"),
		},
		opTimeout:         viper.GetDuration("redis.opTimeout"),
		maxConnectRetries: viper.GetInt("redis.maxConnectRetries"),
	}
}

// NewCacheStoreWithOptions is used by tests and by callers that already hold
// connection options.
func NewCacheStoreWithOptions(opts *redis.Options, opTimeout time.Duration, maxConnectRetries int) *CacheStore {
	return &CacheStore{opts: opts, opTimeout: opTimeout, maxConnectRetries: maxConnectRetries}
}

// Connect establishes the shared connection, retrying with exponential backoff
// up to the configured ceiling. The process must refuse to serve
// auth-dependent traffic if Connect fails at startup.
func (s *CacheStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

func (s *CacheStore) connectLocked(ctx context.Context) error {
	if s.client != nil {
		return nil
	}

	backoff := 250 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= s.maxConnectRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", apierrors.ErrCacheUnavailable, ctx.Err())
			}
			backoff *= 2
			if backoff > maxConnectBackoff {
				backoff = maxConnectBackoff
			}
		}

		client := redis.NewClient(s.opts)
		pingCtx, cancel := context.WithTimeout(ctx, s.opts.DialTimeout)
		_, err := client.Ping(pingCtx).Result()
		cancel()
		if err == nil {
			s.client = client
			logger.Info("Successfully connected to Redis", zap.String("addr", s.opts.Addr))
			return nil
		}
		client.Close()
		lastErr = err
		logger.Warn("Redis connection attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
	}

	return fmt.Errorf("%w: %v", apierrors.ErrCacheUnavailable, lastErr)
}

func (s *CacheStore) getClient(ctx context.Context) (*redis.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		if err := s.connectLocked(ctx); err != nil {
			return nil, err
		}
	}
	return s.client, nil
}

func (s *CacheStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
		s.client = nil
	}
}

// withTimeout bounds every cache operation so no caller blocks indefinitely.
func (s *CacheStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Get returns the value stored under key, ErrCacheMiss if the key is absent,
// or an error wrapping apierrors.ErrCacheUnavailable on any transport failure.
func (s *CacheStore) Get(ctx context.Context, key string) (string, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return "", err
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	val, err := client.Get(opCtx, key).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	} else if err != nil {
		return "", fmt.Errorf("%w: get %s: %v", apierrors.ErrCacheUnavailable, key, err)
	}
	return val, nil
}

// Set stores value under key. The TTL is applied atomically with the write so
// an abandoned request can never leave a value without its expiry.
func (s *CacheStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	client, err := s.getClient(ctx)
	if err != nil {
		return err
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := client.Set(opCtx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", apierrors.ErrCacheUnavailable, key, err)
	}
	return nil
}

// SetIfMatch replaces the value under key only while it still equals expected,
// as a single atomic step on the server. It returns false when the stored
// value is absent or has changed, which is how a refresh-rotation race loser
// is detected.
var setIfMatchScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

func (s *CacheStore) SetIfMatch(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return false, err
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := setIfMatchScript.Run(opCtx, client, []string{key}, expected, value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("%w: setifmatch %s: %v", apierrors.ErrCacheUnavailable, key, err)
	}
	return res == 1, nil
}

func (s *CacheStore) Delete(ctx context.Context, key string) error {
	client, err := s.getClient(ctx)
	if err != nil {
		return err
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := client.Del(opCtx, key).Err(); err != nil {
		return fmt.Errorf("%w: delete %s: %v", apierrors.ErrCacheUnavailable, key, err)
	}
	return nil
}

// DeleteByPrefix removes every key under prefix using a bounded SCAN rather
// than a pattern delete, since Redis has no atomic wildcard deletion. Key
// schemes are designed so a prefix covers one resource, keeping the scan small.
func (s *CacheStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	client, err := s.getClient(ctx)
	if err != nil {
		return err
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	iter := client.Scan(opCtx, 0, prefix+"*", 100).Iterator()
	for iter.Next(opCtx) {
		if err := client.Del(opCtx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("%w: delete %s: %v", apierrors.ErrCacheUnavailable, iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: scan %s: %v", apierrors.ErrCacheUnavailable, prefix, err)
	}

	logger.Debug("Deleted keys by prefix", zap.String("prefix", prefix))
	return nil
}

// LockResource takes a best-effort exclusive lock on a named resource. The
// TTL bounds how long a crashed holder can block others.
func (s *CacheStore) LockResource(ctx context.Context, resourceName string, ttl time.Duration) (bool, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return false, err
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := fmt.Sprintf("lock:%s", resourceName)
	locked, err := client.SetNX(opCtx, key, "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: lock %s: %v", apierrors.ErrCacheUnavailable, resourceName, err)
	}
	logger.Debug("Lock acquisition attempt",
		zap.String("resource", resourceName),
		zap.Bool("acquired", locked))
	return locked, nil
}

// UnlockResource releases a lock taken by LockResource.
func (s *CacheStore) UnlockResource(ctx context.Context, resourceName string) error {
	client, err := s.getClient(ctx)
	if err != nil {
		return err
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := fmt.Sprintf("lock:%s", resourceName)
	if err := client.Del(opCtx, key).Err(); err != nil {
		return fmt.Errorf("%w: unlock %s: %v", apierrors.ErrCacheUnavailable, resourceName, err)
	}
	logger.Debug("Lock released", zap.String("resource", resourceName))
	return nil
}

// RateLimit implements a sliding-window limiter keyed by caller identity.
func (s *CacheStore) RateLimit(ctx context.Context, key string, limit int, per time.Duration) (bool, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return false, err
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	pipe := client.Pipeline()
	now := time.Now().UnixNano()
	key = fmt.Sprintf("ratelimit:%s", key)

	pipe.ZRemRangeByScore(opCtx, key, "0", fmt.Sprintf("%d", now-(per.Nanoseconds())))
	pipe.ZAdd(opCtx, key, redis.Z{Score: float64(now), Member: now})
	pipe.ZCard(opCtx, key)
	pipe.Expire(opCtx, key, per)

	cmds, err := pipe.Exec(opCtx)
	if err != nil {
		return false, fmt.Errorf("%w: rate limit: %v", apierrors.ErrCacheUnavailable, err)
	}

	count := cmds[2].(*redis.IntCmd).Val()
	allowed := count <= int64(limit)
	logger.Debug("Rate limit check",
		zap.String("key", key),
		zap.Int64("count", count),
		zap.Int("limit", limit),
		zap.Bool("allowed", allowed))
	return allowed, nil
}
