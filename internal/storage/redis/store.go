// Package redis persists session records in Redis, for gateways that run
// without a writable local disk.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hongminglow/portal-gateway/internal/storage"
)

var _ storage.SessionRecords = (*Store)(nil)

// Store is a Redis-backed storage.SessionRecords. A positive ttl expires
// records alongside the sealed session.
type Store struct {
	client *goredis.Client
	ttl    time.Duration
}

// New connects using a redis:// URL and verifies the connection.
func New(ctx context.Context, redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Store{client: client, ttl: ttl}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Load(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("redis: load session: %w", err)
	}
	return v, nil
}

func (s *Store) Save(ctx context.Context, key, sealed string) error {
	if err := s.client.Set(ctx, key, sealed, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: save session: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: delete session: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
