package redisx

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-kitchen-orders/internal/poller"
)

// SnapshotStore mirrors the poller's order list.
type SnapshotStore struct {
	RDB redis.Cmdable
}

func (s SnapshotStore) SaveSnapshot(ctx context.Context, snap poller.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.RDB.Set(ctx, KeyOrdersSnapshot, b, TTLSnapshot).Err()
}

func (s SnapshotStore) LoadSnapshot(ctx context.Context) (poller.Snapshot, bool, error) {
	b, err := s.RDB.Get(ctx, KeyOrdersSnapshot).Bytes()
	if errors.Is(err, redis.Nil) {
		return poller.Snapshot{}, false, nil
	}
	if err != nil {
		return poller.Snapshot{}, false, err
	}
	var snap poller.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return poller.Snapshot{}, false, err
	}
	return snap, true, nil
}
