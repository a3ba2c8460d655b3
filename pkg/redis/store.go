// Package redis backs the storefront key-value store with a Redis server.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"julianmorley.ca/con-plar/petstore/pkg/global"
	"julianmorley.ca/con-plar/petstore/pkg/store"
)

var _ store.Backend = (*Store)(nil)

// Store keeps each storefront key as a plain string under "<prefix>:<key>".
// Values never expire.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore wraps client. An empty prefix stores keys unprefixed.
func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Open connects using cfg and verifies the server answers.
func Open(ctx context.Context, cfg global.Config) (*Store, error) {
	client := NewClient(cfg)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddress, err)
	}
	log.WithFields(log.Fields{
		"address": cfg.RedisAddress,
		"prefix":  cfg.RedisKeyPrefix,
	}).Info("Connected to Redis")
	return NewStore(client, cfg.RedisKeyPrefix), nil
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
