package store

import (
	"context"
	"slices"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[namespace][key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return slices.Clone(v), nil
}

func (s *MemoryStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucket(namespace)[key] = slices.Clone(value)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[namespace], key)
	return nil
}

func (s *MemoryStore) Scan(ctx context.Context, namespace string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns := s.data[namespace]
	entries := make([]Entry, 0, len(ns))
	for k, v := range ns {
		entries = append(entries, Entry{Key: k, Value: slices.Clone(v)})
	}
	return entries, nil
}

func (s *MemoryStore) PutBatch(ctx context.Context, namespace string, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bucket(namespace)
	for _, e := range entries {
		b[e.Key] = slices.Clone(e.Value)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) bucket(namespace string) map[string][]byte {
	b, ok := s.data[namespace]
	if !ok {
		b = make(map[string][]byte)
		s.data[namespace] = b
	}
	return b
}
