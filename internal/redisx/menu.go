package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
)

// MenuCache keeps product lists per category for a short while.
type MenuCache struct {
	RDB redis.Cmdable
}

func (m MenuCache) Get(ctx context.Context, category string) ([]orders.Product, bool, error) {
	b, err := m.RDB.Get(ctx, fmt.Sprintf(KeyMenu, category)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ps []orders.Product
	if err := json.Unmarshal(b, &ps); err != nil {
		return nil, false, err
	}
	return ps, true, nil
}

func (m MenuCache) Set(ctx context.Context, category string, ps []orders.Product) error {
	b, err := json.Marshal(ps)
	if err != nil {
		return err
	}
	return m.RDB.Set(ctx, fmt.Sprintf(KeyMenu, category), b, TTLMenu).Err()
}

// Clear drops every cached category.
func (m MenuCache) Clear(ctx context.Context) error {
	iter := m.RDB.Scan(ctx, 0, fmt.Sprintf(KeyMenu, "*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return m.RDB.Del(ctx, keys...).Err()
}
