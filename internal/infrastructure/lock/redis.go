package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix         = "lock:"
	defaultLockTTL    = 10 * time.Second
	defaultRetryDelay = 25 * time.Millisecond
)

var ErrNotAcquired = errors.New("lock: not acquired")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lease lock shared by every instance talking to the same server.
// A holder that outlives the TTL loses the lock.
type Redis struct {
	client     redis.Cmdable
	ttl        time.Duration
	retryDelay time.Duration
	log        observability.Logger
}

type RedisOption func(*Redis)

func WithTTL(d time.Duration) RedisOption { return func(r *Redis) { r.ttl = d } }

func WithRetryDelay(d time.Duration) RedisOption { return func(r *Redis) { r.retryDelay = d } }

func NewRedis(client redis.Cmdable, log observability.Logger, opts ...RedisOption) *Redis {
	if log == nil {
		log = observability.NopLogger()
	}
	r := &Redis{
		client:     client,
		ttl:        defaultLockTTL,
		retryDelay: defaultRetryDelay,
		log:        log.With(observability.F("component", "redis_lock")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lock polls SET NX PX until it wins or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	full := keyPrefix + key
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(r.retryDelay)
	defer ticker.Stop()
	for {
		acquired, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: acquire %s: %w", full, err)
		}
		if acquired {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrNotAcquired, full, ctx.Err())
		case <-ticker.C:
		}
	}

	return func() {
		// release must run even when the request context is already gone
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		n, err := releaseScript.Run(relCtx, r.client, []string{full}, token).Int()
		if err != nil {
			r.log.Warn("lock_release_failed",
				observability.F("key", full),
				observability.F("error", err.Error()),
			)
			return
		}
		if n == 0 {
			r.log.Warn("lock_lease_expired_before_release", observability.F("key", full))
		}
	}, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock: token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
