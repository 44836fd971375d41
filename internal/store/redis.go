package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KeyNamespace is the redis hash holding one namespace.
const KeyNamespace = "arena:%s"

// RedisStore maps each namespace onto a single hash.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	v, err := s.rdb.HGet(ctx, fmt.Sprintf(KeyNamespace, namespace), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", namespace, key, err)
	}
	return v, nil
}

func (s *RedisStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	if err := s.rdb.HSet(ctx, fmt.Sprintf(KeyNamespace, namespace), key, value).Err(); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, namespace, key string) error {
	if err := s.rdb.HDel(ctx, fmt.Sprintf(KeyNamespace, namespace), key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *RedisStore) Scan(ctx context.Context, namespace string) ([]Entry, error) {
	all, err := s.rdb.HGetAll(ctx, fmt.Sprintf(KeyNamespace, namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", namespace, err)
	}
	entries := make([]Entry, 0, len(all))
	for k, v := range all {
		entries = append(entries, Entry{Key: k, Value: []byte(v)})
	}
	return entries, nil
}

// PutBatch relies on a multi-field HSET being applied atomically.
func (s *RedisStore) PutBatch(ctx context.Context, namespace string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]any, 0, len(entries)*2)
	for _, e := range entries {
		values = append(values, e.Key, e.Value)
	}
	if err := s.rdb.HSet(ctx, fmt.Sprintf(KeyNamespace, namespace), values...).Err(); err != nil {
		return fmt.Errorf("failed to put batch in %s: %w", namespace, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
