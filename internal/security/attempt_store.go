package security

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goCache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

type attempt struct {
	count int
	last  time.Time
}

// MemoryAttemptStore keeps counters in process memory. Expired entries are
// evicted by go-cache; the window itself is evaluated against the caller's clock.
type MemoryAttemptStore struct {
	mu    sync.Mutex
	cache *goCache.Cache
}

func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{cache: goCache.New(DefaultWindow, 10*time.Minute)}
}

func (s *MemoryAttemptStore) Hit(_ context.Context, key string, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := attempt{count: 1, last: now}
	if v, ok := s.cache.Get(key); ok {
		prev := v.(attempt)
		if now.Sub(prev.last) <= window {
			a.count = prev.count + 1
		}
	}
	s.cache.Set(key, a, window+time.Minute)
	return a.count, nil
}

func (s *MemoryAttemptStore) Clear(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// count 1 on the first hit or when the previous one is older than the window
var attemptScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local last = tonumber(redis.call("HGET", KEYS[1], "last"))
local count = 1
if last and (now - last) <= window then
  count = redis.call("HINCRBY", KEYS[1], "count", 1)
else
  redis.call("HSET", KEYS[1], "count", 1)
end
redis.call("HSET", KEYS[1], "last", ARGV[1])
redis.call("PEXPIRE", KEYS[1], window + 60000)
return count
`)

// RedisAttemptStore shares counters between instances through Redis.
type RedisAttemptStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisAttemptStore(client redis.UniversalClient, prefix string) *RedisAttemptStore {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "seacatering"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisAttemptStore{client: client, prefix: trimmedPrefix + ":attempts"}
}

func (s *RedisAttemptStore) key(k string) string {
	return fmt.Sprintf("%s:%s", s.prefix, k)
}

func (s *RedisAttemptStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	raw, err := attemptScript.Run(ctx, s.client, []string{s.key(key)}, now.UnixMilli(), window.Milliseconds()).Result()
	if err != nil {
		return 0, err
	}
	count, ok := raw.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected redis attempt count type: %T", raw)
	}
	return int(count), nil
}

func (s *RedisAttemptStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
