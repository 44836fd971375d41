// Package store is the key-value abstraction shared by the ping ledger and the
// ranking engine. Keys live in namespaces, one per entity kind.
package store

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("key not found")

type Entry struct {
	Key   string
	Value []byte
}

type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Put(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
	Scan(ctx context.Context, namespace string) ([]Entry, error)
	// PutBatch writes all entries or none of them.
	PutBatch(ctx context.Context, namespace string, entries []Entry) error
	Close() error
}
