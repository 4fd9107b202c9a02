package yearlock

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if we still own it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every server instance pointing at the same Redis.
// The TTL bounds how long a crashed holder can block allocation.
type Redis struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	retry     time.Duration
}

// NewRedis creates a Redis-backed locker
func NewRedis(client *redis.Client, keyPrefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if keyPrefix == "" {
		keyPrefix = "membership:idlock"
	}
	return &Redis{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		retry:     25 * time.Millisecond,
	}
}

// NewRedisClient builds a go-redis client from connection settings
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (r *Redis) key(year int) string {
	return fmt.Sprintf("%s:%d", r.keyPrefix, year)
}

// Lock polls SET NX until it wins or ctx is done
func (r *Redis) Lock(ctx context.Context, year int) (func(), error) {
	key := r.key(year)
	token := uuid.NewString()
	wait := r.retry

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire %s: %w", key, err)
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
					log.Printf("⚠️ Failed to release %s: %v", key, err)
				}
			}, nil
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if wait < 200*time.Millisecond {
			wait *= 2
		}
	}
}
