package lock

import (
	"context"
	"time"

	"attendance-import-backend/internal/apperr"
	"attendance-import-backend/internal/config"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "attendance-import:lock:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every replica pointing at the same server.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// New picks the Redis locker when an address is configured and the in-process
// one otherwise.
func New(ctx context.Context, opts config.RedisOptions) (Locker, error) {
	if opts.Addr == "" {
		logrus.Warn("REDIS_ADDR not set, batch locks are process-local")
		return NewLocal(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "ping redis at %s", opts.Addr)
	}
	logrus.WithField("addr", opts.Addr).Info("redis batch locks enabled")
	return NewRedis(client, opts.LockTTL), nil
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, keyPrefix+key, token, r.ttl).Result()
	if err != nil {
		return nil, apperr.Upstream("acquire batch lock", errors.Wrap(err, "redis setnx"))
	}
	if !ok {
		return nil, apperr.Conflict("batch %s is busy with another operation", key)
	}

	return func() {
		// The caller's context may already be cancelled by now.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.client, []string{keyPrefix + key}, token).Err(); err != nil && err != redis.Nil {
			logrus.WithError(err).WithField("batch_id", key).Warn("failed to release batch lock")
		}
	}, nil
}
