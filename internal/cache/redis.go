package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/volleystats/parser/internal/platform/logging"
)

// RedisStore backs the cache with a Redis instance carrying the RedisJSON
// module. Documents are stored as JSON at the root path so aggregate reads
// can use JSON.MGET.
type RedisStore struct {
	client *redis.Client
	log    *logging.Logger
}

func NewRedisStore(client *redis.Client, log *logging.Logger) *RedisStore {
	return &RedisStore{client: client, log: log}
}

// Ping verifies the connection on startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis ping")
	}
	return nil
}

func (s *RedisStore) GetJSON(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.JSONGet(ctx, key, "$").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "json get %s", key)
	}
	if raw == "" {
		return nil, nil
	}
	return unwrapJSONPath([]byte(raw)), nil
}

func (s *RedisStore) SetJSON(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.JSONSet(ctx, key, "$", string(value)).Err(); err != nil {
		return errors.Wrapf(err, "json set %s", key)
	}
	if ttl > 0 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return errors.Wrapf(err, "expire %s", key)
		}
	}
	return nil
}

func (s *RedisStore) MGetJSON(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := s.client.JSONMGet(ctx, "$", keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "json mget")
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok || str == "" {
			continue
		}
		out = append(out, unwrapJSONPath([]byte(str)))
	}
	return out, nil
}

func (s *RedisStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", pattern)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "del %s", key)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Wrapf(err, "exists %s", key)
	}
	return n > 0, nil
}

// unwrapJSONPath strips the single-element array JSON.GET returns for the
// "$" path, yielding the bare document.
func unwrapJSONPath(raw []byte) []byte {
	if len(raw) >= 2 && raw[0] == '[' && raw[len(raw)-1] == ']' {
		return raw[1 : len(raw)-1]
	}
	return raw
}
