package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goCache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// MemoryTokenStore keeps tokens in process memory.
type MemoryTokenStore struct {
	cache *goCache.Cache
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{cache: goCache.New(DefaultCSRFTokenTTL, 10*time.Minute)}
}

func (s *MemoryTokenStore) Put(_ context.Context, session, token string, ttl time.Duration) error {
	s.cache.Set(session, token, ttl)
	return nil
}

func (s *MemoryTokenStore) Get(_ context.Context, session string) (string, bool, error) {
	v, ok := s.cache.Get(session)
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, session string) error {
	s.cache.Delete(session)
	return nil
}

// RedisTokenStore shares tokens between instances through Redis.
type RedisTokenStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisTokenStore(client redis.UniversalClient, prefix string) *RedisTokenStore {
	trimmedPrefix := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmedPrefix == "" {
		trimmedPrefix = "seacatering"
	}
	return &RedisTokenStore{client: client, prefix: trimmedPrefix + ":csrf"}
}

func (s *RedisTokenStore) key(session string) string {
	return fmt.Sprintf("%s:%s", s.prefix, session)
}

func (s *RedisTokenStore) Put(ctx context.Context, session, token string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(session), token, ttl).Err()
}

func (s *RedisTokenStore) Get(ctx context.Context, session string) (string, bool, error) {
	token, err := s.client.Get(ctx, s.key(session)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func (s *RedisTokenStore) Delete(ctx context.Context, session string) error {
	return s.client.Del(ctx, s.key(session)).Err()
}
