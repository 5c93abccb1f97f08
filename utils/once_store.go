package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// OnceStore answers "has this key been seen within ttl". Redis SETNX is
// preferred; the in-memory map is used when Redis is nil or failing.
type OnceStore struct {
	client *redis.Client
	prefix string

	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewOnceStore returns a store namespacing its keys with prefix.
func NewOnceStore(client *redis.Client, prefix string) *OnceStore {
	return &OnceStore{client: client, prefix: prefix, seen: map[string]time.Time{}, now: time.Now}
}

// MarkOnce records key and reports true only for the first call within ttl.
func (s *OnceStore) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s.client != nil {
		rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		ok, err := s.client.SetNX(rctx, s.prefix+key, "1", ttl).Result()
		if err == nil {
			return ok, nil
		}
		// On Redis error fall through to the memory store.
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.seen {
		if now.After(exp) {
			delete(s.seen, k)
		}
	}
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = now.Add(ttl)
	return true, nil
}

// Forget drops key so the next MarkOnce for it succeeds again.
func (s *OnceStore) Forget(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.seen, key)
	s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Del(rctx, s.prefix+key).Err()
}
