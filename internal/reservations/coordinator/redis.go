package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"calendra/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockPrefix    = "calendra:lock:resource:"
	defaultLockTTL       = 15 * time.Second
	defaultRetryInterval = 20 * time.Millisecond
	releaseTimeout       = 2 * time.Second
)

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while it still carries our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type redisLocker interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisCoordinator extends per-resource exclusion across processes with a
// SET NX PX lease. Callers in the same process queue on a local lock first.
// The lease is renewed while held. Writes that outlive a lost lease are
// refused by the store's version guard.
type RedisCoordinator struct {
	client        redisLocker
	local         *KeyedMutex
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
	renewInterval time.Duration
	log           *logger.Logger
}

type RedisOption func(*RedisCoordinator)

func WithPrefix(prefix string) RedisOption {
	return func(c *RedisCoordinator) { c.prefix = prefix }
}

func WithRetryInterval(d time.Duration) RedisOption {
	return func(c *RedisCoordinator) { c.retryInterval = d }
}

// WithRenewInterval sets how often a held lease is extended. Defaults to a
// third of the TTL.
func WithRenewInterval(d time.Duration) RedisOption {
	return func(c *RedisCoordinator) { c.renewInterval = d }
}

func NewRedisCoordinator(client redisLocker, ttl time.Duration, log *logger.Logger, opts ...RedisOption) *RedisCoordinator {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	c := &RedisCoordinator{
		client:        client,
		local:         NewKeyedMutex(),
		prefix:        defaultLockPrefix,
		ttl:           ttl,
		retryInterval: defaultRetryInterval,
		renewInterval: ttl / 3,
		log:           log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.renewInterval <= 0 || c.renewInterval >= c.ttl {
		c.renewInterval = c.ttl / 3
	}
	return c
}

func (c *RedisCoordinator) Acquire(ctx context.Context, resourceID string) (Release, error) {
	localRelease, err := c.local.Acquire(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	key := c.prefix + resourceID
	token := uuid.NewString()

	for {
		ok, err := c.client.SetNX(ctx, key, token, c.ttl).Result()
		if err != nil {
			localRelease()
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w %q: %w", ErrLockTimeout, resourceID, ctx.Err())
			}
			return nil, fmt.Errorf("redis setnx %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			localRelease()
			return nil, fmt.Errorf("%w %q: %w", ErrLockTimeout, resourceID, ctx.Err())
		case <-time.After(c.retryInterval):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go c.keepAlive(key, token, resourceID, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			defer localRelease()

			close(stop)
			<-done

			releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()

			if err := releaseScript.Run(releaseCtx, c.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				c.log.Warn("Failed to release resource lock, it will expire on its own",
					"resource_id", resourceID,
					"ttl", c.ttl,
					"error", err,
				)
			}
		})
	}, nil
}

// keepAlive renews the lease until stop is closed or the lease is found to
// belong to someone else.
func (c *RedisCoordinator) keepAlive(key, token, resourceID string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		renewed, err := renewScript.Run(ctx, c.client, []string{key}, token, c.ttl.Milliseconds()).Int64()
		cancel()

		switch {
		case err != nil && !errors.Is(err, redis.Nil):
			c.log.Warn("Failed to renew resource lock",
				"resource_id", resourceID,
				"error", err,
			)
		case renewed == 0:
			c.log.Error("Resource lock lost before release",
				"resource_id", resourceID,
				"ttl", c.ttl,
			)
			return
		}
	}
}
