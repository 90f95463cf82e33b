package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore caches external-link probe results so repeated crawls, and
// websites sharing outbound links, skip re-probing within the TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr string, ttl time.Duration) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisStore{client: rdb, ttl: ttl}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

type probeEntry struct {
	Status *int   `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// GetProbe looks up a cached reachability probe. ok is false on a cache
// miss; a malformed entry counts as a miss.
func (s *RedisStore) GetProbe(ctx context.Context, url string) (*int, string, bool, error) {
	val, err := s.client.Get(ctx, probeKey(url)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, err
	}

	var entry probeEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, "", false, nil
	}
	return entry.Status, entry.Reason, true, nil
}

// SetProbe stores a probe result under the configured TTL.
func (s *RedisStore) SetProbe(ctx context.Context, url string, status *int, reason string) error {
	data, err := json.Marshal(probeEntry{Status: status, Reason: reason})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, probeKey(url), data, s.ttl).Err()
}

func probeKey(url string) string {
	return fmt.Sprintf("probe:%s", url)
}

// currentCheckKey mirrors the single-flight holder. The TTL guards
// against a crashed process leaving a stale marker behind.
const currentCheckKey = "monitor:current_check"

func (s *RedisStore) SetCurrentCheck(ctx context.Context, websiteID string) error {
	return s.client.Set(ctx, currentCheckKey, websiteID, time.Hour).Err()
}

func (s *RedisStore) ClearCurrentCheck(ctx context.Context) error {
	return s.client.Del(ctx, currentCheckKey).Err()
}

// IncrFetchRetries bumps the per-URL retry counter. Counters expire
// with the probe TTL so the keyspace stays bounded.
func (s *RedisStore) IncrFetchRetries(ctx context.Context, url string) error {
	key := fmt.Sprintf("retries:%s", url)
	if err := s.client.Incr(ctx, key).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}
