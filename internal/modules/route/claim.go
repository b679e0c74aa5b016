// README: Per-route processing claim in Redis so concurrent triggers never configure a route twice.
package route

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mihir-logicrays/drive-it/internal/types"
)

const claimKeyPrefix = "paths:route:%s:claim"

// releaseScript deletes the claim only if it is still held by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisClaimer struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisClaimer(rdb *redis.Client, ttl time.Duration) *RedisClaimer {
	return &RedisClaimer{redis: rdb, ttl: ttl}
}

// Claim takes the route for the claim TTL. ok is false when another worker
// holds it.
func (c *RedisClaimer) Claim(ctx context.Context, routeID types.ID) (owner string, ok bool, err error) {
	owner = uuid.NewString()
	ok, err = c.redis.SetNX(ctx, claimKey(routeID), owner, c.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return owner, ok, nil
}

func (c *RedisClaimer) Release(ctx context.Context, routeID types.ID, owner string) error {
	return releaseScript.Run(ctx, c.redis, []string{claimKey(routeID)}, owner).Err()
}

// NoopClaimer grants every claim; used when Redis is not configured.
type NoopClaimer struct{}

func (NoopClaimer) Claim(context.Context, types.ID) (string, bool, error) { return "", true, nil }

func (NoopClaimer) Release(context.Context, types.ID, string) error { return nil }

func claimKey(routeID types.ID) string {
	return fmt.Sprintf(claimKeyPrefix, string(routeID))
}
