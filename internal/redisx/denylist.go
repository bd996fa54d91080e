package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist holds ids of logged-out session tokens until they would expire.
type Denylist struct {
	RDB redis.Cmdable
}

func (d Denylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return d.RDB.Set(ctx, fmt.Sprintf(KeySessionRevoked, jti), "1", ttl).Err()
}

func (d Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return Exists(ctx, d.RDB, fmt.Sprintf(KeySessionRevoked, jti))
}
