package access

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wanderaudio/guidekit/pkg/entitlement"
)

// SnapshotCache is an advisory cache for entitlement snapshots. A stale or
// missing entry is never an access-control problem: the consumption policy
// re-checks the ledger at the moment of use.
type SnapshotCache interface {
	// Get returns a cached snapshot or ErrSnapshotNotCached.
	Get(ctx context.Context, accountID uuid.UUID) (entitlement.Snapshot, error)

	// Set stores a snapshot until its TTL elapses or it is invalidated.
	Set(ctx context.Context, accountID uuid.UUID, snapshot entitlement.Snapshot) error

	// Invalidate drops the cached snapshot after a state-changing operation.
	Invalidate(ctx context.Context, accountID uuid.UUID) error
}

const defaultSnapshotTTL = 5 * time.Minute

// RedisSnapshotCache stores entitlement snapshots in Redis with a TTL.
type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSnapshotCache creates a snapshot cache over the given client.
// Panics if client is nil to fail fast during initialization.
func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	if client == nil {
		panic("access: redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &RedisSnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(accountID uuid.UUID) string {
	return "entitlement:snapshot:" + accountID.String()
}

func (c *RedisSnapshotCache) Get(ctx context.Context, accountID uuid.UUID) (entitlement.Snapshot, error) {
	raw, err := c.client.Get(ctx, snapshotKey(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entitlement.Snapshot{}, ErrSnapshotNotCached
		}
		return entitlement.Snapshot{}, err
	}

	var snapshot entitlement.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		// Treat a corrupt entry as a miss; it will be overwritten.
		return entitlement.Snapshot{}, ErrSnapshotNotCached
	}
	return snapshot, nil
}

func (c *RedisSnapshotCache) Set(ctx context.Context, accountID uuid.UUID, snapshot entitlement.Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey(accountID), raw, c.ttl).Err()
}

func (c *RedisSnapshotCache) Invalidate(ctx context.Context, accountID uuid.UUID) error {
	return c.client.Del(ctx, snapshotKey(accountID)).Err()
}
