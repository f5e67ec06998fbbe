package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"schooltrack/internal/resilience"
)

const snapshotKeyPrefix = "snapshot:"

// SnapshotStore keeps last-known values in Redis for the resilient read
// path. Entries have no TTL: a snapshot is only useful during a primary
// store outage, which is exactly when it must still be there.
type SnapshotStore struct {
	client *redis.Client
}

// NewSnapshotStore creates a new Redis-backed snapshot store.
func NewSnapshotStore(client *redis.Client) *SnapshotStore {
	return &SnapshotStore{client: client}
}

// Put stores the JSON encoding of v under key.
func (s *SnapshotStore) Put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, snapshotKeyPrefix+key, data, 0).Err()
}

// Get decodes the last value stored under key into out.
func (s *SnapshotStore) Get(ctx context.Context, key string, out any) error {
	data, err := s.client.Get(ctx, snapshotKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return resilience.ErrNoSnapshot
		}
		return err
	}
	return json.Unmarshal(data, out)
}

// Ensure SnapshotStore implements resilience.SnapshotStore.
var _ resilience.SnapshotStore = (*SnapshotStore)(nil)
