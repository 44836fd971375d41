package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection is a JSON-typed view over one namespace.
type Collection[T any] struct {
	store     Store
	namespace string
}

func NewCollection[T any](s Store, namespace string) *Collection[T] {
	return &Collection[T]{store: s, namespace: namespace}
}

func (c *Collection[T]) Namespace() string {
	return c.namespace
}

func (c *Collection[T]) Get(ctx context.Context, key string) (T, error) {
	var v T
	raw, err := c.store.Get(ctx, c.namespace, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("failed to decode %s/%s: %w", c.namespace, key, err)
	}
	return v, nil
}

func (c *Collection[T]) Put(ctx context.Context, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", c.namespace, key, err)
	}
	return c.store.Put(ctx, c.namespace, key, raw)
}

func (c *Collection[T]) PutBatch(ctx context.Context, items map[string]T) error {
	entries := make([]Entry, 0, len(items))
	for key, v := range items {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", c.namespace, key, err)
		}
		entries = append(entries, Entry{Key: key, Value: raw})
	}
	return c.store.PutBatch(ctx, c.namespace, entries)
}

func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.namespace, key)
}

// Scan decodes every value in the namespace, keyed by store key.
func (c *Collection[T]) Scan(ctx context.Context) (map[string]T, error) {
	entries, err := c.store.Scan(ctx, c.namespace)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", c.namespace, e.Key, err)
		}
		out[e.Key] = v
	}
	return out, nil
}
