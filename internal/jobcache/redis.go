// Package jobcache provides a short-lived Redis cache for job status polling,
// so frequent status requests do not all hit Postgres.
package jobcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// statusTTL keeps cached entries short-lived; a stale status self-corrects on
// the next poll after expiry.
const statusTTL = 5 * time.Second

// JobStatus is the cached view of a document's correction job.
type JobStatus struct {
	Status                string `json:"status"`
	CancellationRequested bool   `json:"cancellation_requested"`
	VersionNumber         int    `json:"version_number"`
}

// RedisStore caches job status snapshots in Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed job status cache.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "job:"}, nil
}

// NewRedisStoreWithClient creates a cache from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "job:"}
}

func (s *RedisStore) key(documentID string) string {
	return s.prefix + documentID
}

// Set caches a job status snapshot for a document.
func (s *RedisStore) Set(ctx context.Context, documentID string, status JobStatus) error {
	jsonData, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal job status: %w", err)
	}
	if err := s.client.Set(ctx, s.key(documentID), jsonData, statusTTL).Err(); err != nil {
		return fmt.Errorf("cache job status: %w", err)
	}
	return nil
}

// Get returns the cached status for a document, or nil on a cache miss.
func (s *RedisStore) Get(ctx context.Context, documentID string) (*JobStatus, error) {
	jsonData, err := s.client.Get(ctx, s.key(documentID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup job status: %w", err)
	}

	var status JobStatus
	if err := json.Unmarshal([]byte(jsonData), &status); err != nil {
		return nil, fmt.Errorf("unmarshal job status: %w", err)
	}
	return &status, nil
}

// Invalidate drops the cached status so the next poll reads Postgres.
func (s *RedisStore) Invalidate(ctx context.Context, documentID string) error {
	if err := s.client.Del(ctx, s.key(documentID)).Err(); err != nil {
		return fmt.Errorf("invalidate job status: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
