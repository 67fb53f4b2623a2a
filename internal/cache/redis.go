package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// indexKey names the sorted set of live keys scored by last access time.
const indexKey = "_lru"

// Redis shares cache entries between API instances. Values are stored as
// JSON and expire through the key TTL. A sorted set of access times keeps
// at most size live entries, evicting the least recently used; with several
// instances writing at once the bound is approximate.
type Redis[V any] struct {
	client *redis.Client
	prefix string
	size   int
	ttl    time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

// Connect parses a redis:// URL and verifies the server answers PING.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if pong != "PONG" {
		_ = client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

// NewRedis wraps client. prefix namespaces every key; size and ttl fall
// back to DefaultSize and DefaultTTL when not positive.
func NewRedis[V any](client *redis.Client, prefix string, size int, ttl time.Duration, log zerolog.Logger) *Redis[V] {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis[V]{client: client, prefix: prefix, size: size, ttl: ttl, log: log, now: time.Now}
}

// Get treats every backend failure as a miss. A hit refreshes the key's
// position in the LRU index.
func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.client.ZRem(ctx, r.prefix+indexKey, key)
		} else {
			r.log.Warn().Err(err).Str("key", key).Msg("redis cache get failed")
		}
		return zero, false
	}
	var v V
	if err := json.Unmarshal(b, &v); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("redis cache entry undecodable")
		return zero, false
	}
	if err := r.client.ZAdd(ctx, r.prefix+indexKey, r.member(key)).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("redis cache touch failed")
	}
	return v, true
}

// Set stores value and evicts the least recently used keys over size.
func (r *Redis[V]) Set(ctx context.Context, key string, value V) {
	b, err := json.Marshal(value)
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("redis cache encode failed")
		return
	}
	index := r.prefix + indexKey
	stale := r.now().Add(-r.ttl).UnixMicro()
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.prefix+key, b, r.ttl)
		p.ZAdd(ctx, index, r.member(key))
		p.ZRemRangeByScore(ctx, index, "-inf", fmt.Sprint(stale))
		return nil
	})
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("redis cache set failed")
		return
	}
	r.trim(ctx)
}

// trim deletes the oldest keys beyond size.
func (r *Redis[V]) trim(ctx context.Context) {
	index := r.prefix + indexKey
	victims, err := r.client.ZRange(ctx, index, 0, int64(-(r.size + 1))).Result()
	if err != nil || len(victims) == 0 {
		if err != nil {
			r.log.Warn().Err(err).Msg("redis cache trim failed")
		}
		return
	}
	keys := make([]string, len(victims))
	members := make([]any, len(victims))
	for i, v := range victims {
		keys[i] = r.prefix + v
		members[i] = v
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		p.ZRem(ctx, index, members...)
		return nil
	})
	if err != nil {
		r.log.Warn().Err(err).Int("victims", len(victims)).Msg("redis cache eviction failed")
	}
}

func (r *Redis[V]) member(key string) redis.Z {
	return redis.Z{Score: float64(r.now().UnixMicro()), Member: key}
}
