package metastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRedisURL      = errors.New("metastore: failed to parse redis url")
	ErrRedisNotReady = errors.New("metastore: redis did not become ready")
)

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	URL            string
	Prefix         string
	RetryAttempts  int
	RetryInterval  time.Duration
	ConnectTimeout time.Duration
}

// ConnectRedis opens a client and pings it until it answers or the
// attempts run out.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrRedisURL, err)
	}

	for range cfg.RetryAttempts {
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, ErrRedisNotReady
}

// incrementIfBelowScript returns {incremented, value}.
var incrementIfBelowScript = redis.NewScript(`
local v = tonumber(redis.call('GET', KEYS[1]) or '0')
if v >= tonumber(ARGV[1]) then
  return {0, v}
end
return {1, redis.call('INCR', KEYS[1])}
`)

var decrementScript = redis.NewScript(`
local v = tonumber(redis.call('GET', KEYS[1]) or '0')
if v <= 1 then
  redis.call('DEL', KEYS[1])
  return 0
end
return redis.call('DECR', KEYS[1])
`)

// RedisStore keeps each attribute in its own string key:
// {prefix}:meta:{namespace}:{id}:{field}
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Store backed by Redis.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "packs"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) redisKey(key Key) string {
	return fmt.Sprintf("%s:meta:%s:%d:%s", s.prefix, key.Namespace, key.ID, key.Field)
}

func (s *RedisStore) Get(ctx context.Context, key Key) (int64, bool, error) {
	if err := key.Validate(); err != nil {
		return 0, false, err
	}
	v, err := s.client.Get(ctx, s.redisKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key Key, value int64) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Increment(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	v, err := s.client.Incr(ctx, s.redisKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) IncrementIfBelow(ctx context.Context, key Key, limit int64) (int64, bool, error) {
	if err := key.Validate(); err != nil {
		return 0, false, err
	}
	res, err := incrementIfBelowScript.Run(ctx, s.client, []string{s.redisKey(key)}, limit).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("increment %s below %d: %w", key, limit, err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("increment %s below %d: unexpected reply %v", key, limit, res)
	}
	return res[1], res[0] == 1, nil
}

func (s *RedisStore) Decrement(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	v, err := decrementScript.Run(ctx, s.client, []string{s.redisKey(key)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("decrement %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
