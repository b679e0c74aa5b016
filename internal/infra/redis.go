// README: Redis client initialization for route processing claims.
package infra

import "github.com/redis/go-redis/v9"

// NewRedis returns nil when addr is empty; claims are then skipped.
func NewRedis(addr string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr})
}
