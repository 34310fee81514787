package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "fedlearn/pkg/domain"
)

const (
	// Redis key prefix for dispatch locks
	lockKeyPrefix = "fedlearn:dispatch:"

	defaultLockTTL = 30 * time.Minute
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard guards runs across instances sharing one Redis. The lock
// expires after its TTL so a crashed driver cannot hold a run forever.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisGuardOption func(*RedisGuard)

func WithLockTTL(ttl time.Duration) RedisGuardOption {
	return func(g *RedisGuard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

func NewRedisGuard(client *redis.Client, opts ...RedisGuardOption) *RedisGuard {
	g := &RedisGuard{client: client, ttl: defaultLockTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Acquire takes the lock with SET NX PX.
func (g *RedisGuard) Acquire(ctx context.Context, runID id.RunID) (Release, error) {
	key := lockKeyPrefix + runID.String()
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !ok {
		return nil, ErrInFlight
	}
	return func() {
		// Release outlives the request context that acquired it.
		_ = releaseScript.Run(context.Background(), g.client, []string{key}, token).Err()
	}, nil
}
