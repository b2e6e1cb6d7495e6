// Package lock provides a Redis-backed extend lock for deployments that run
// more than one planner process against a shared store.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/khoii1/DA-Fitness/internal/logger"
	"github.com/khoii1/DA-Fitness/internal/planner"
)

const keyPrefix = "fitness:extend-lock:"

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another process is left alone.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Options struct {
	Addr     string
	Password string
	DB       int
}

// RedisLocker implements planner.Locker with SET NX PX. Every acquisition
// writes its own token, so a lease only ever deletes the value it wrote.
type RedisLocker struct {
	rdb *goredis.Client
	log *logger.Logger
}

var _ planner.Locker = (*RedisLocker)(nil)

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(ctx context.Context, opts Options, log *logger.Logger) (*RedisLocker, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisLockerWithClient(rdb, log), nil
}

func NewRedisLockerWithClient(rdb *goredis.Client, log *logger.Logger) *RedisLocker {
	return &RedisLocker{
		rdb: rdb,
		log: log.With("component", "redis-lock"),
	}
}

func redisKey(key planner.LockKey) string {
	return keyPrefix + key.String()
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key planner.LockKey, ttl time.Duration) (planner.Lease, error) {
	token := uuid.NewString()
	k := redisKey(key)
	ok, err := l.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s: %w", k, err)
	}
	if !ok {
		return nil, nil
	}
	l.log.Debug("acquired extend lock", "key", k, "ttl", ttl)
	return &redisLease{locker: l, key: k, token: token}, nil
}

type redisLease struct {
	locker *RedisLocker
	key    string
	token  string
}

func (r *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, r.locker.rdb, []string{r.key}, r.token).Int()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("failed to release %s: %w", r.key, err)
	}
	if n == 0 {
		r.locker.log.Warn("extend lock expired before release", "key", r.key)
	}
	return nil
}

func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}
