package permissions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot stores the last successfully fetched set outside the process.
type Snapshot interface {
	Load(ctx context.Context, clientID string) (Set, bool)
	Save(ctx context.Context, clientID string, set Set) error
}

// RedisSnapshot keeps the set as a JSON list under bldgate:iam:protected:<client>.
type RedisSnapshot struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSnapshot returns a snapshot store; ttl defaults to one hour.
func NewRedisSnapshot(rdb *redis.Client, ttl time.Duration) *RedisSnapshot {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisSnapshot{rdb: rdb, ttl: ttl}
}

func snapshotKey(clientID string) string { return "bldgate:iam:protected:" + clientID }

func (r *RedisSnapshot) Load(ctx context.Context, clientID string) (Set, bool) {
	raw, err := r.rdb.Get(ctx, snapshotKey(clientID)).Bytes()
	if err != nil {
		return Set{}, false
	}
	var pairs []Pair
	if err := json.Unmarshal(raw, &pairs); err != nil || len(pairs) == 0 {
		return Set{}, false
	}
	return NewSet(pairs...), true
}

func (r *RedisSnapshot) Save(ctx context.Context, clientID string, set Set) error {
	raw, err := json.Marshal(set.Pairs())
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, snapshotKey(clientID), raw, r.ttl).Err()
}
