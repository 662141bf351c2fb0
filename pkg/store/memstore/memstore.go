// Package memstore は go-cache を用いたメモリ上のストア実装です。
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/patrickmn/go-cache"

	"github.com/shouni/go-comic-kit/pkg/store"
)

const cleanupInterval = 0

// Store は容量上限付きのメモリストアです。quota が 0 以下の場合は上限なしです。
type Store struct {
	mu    sync.Mutex
	items *cache.Cache
	used  int
	quota int
}

// New は空のストアを返します。
func New(quota int) *Store {
	return &Store{
		items: cache.New(cache.NoExpiration, cleanupInterval),
		quota: quota,
	}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return "", false, nil
	}
	str, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("memstore: 予期しない値の型です: %T", v)
	}
	return str, true, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.used + store.EntrySize(key, value)
	if old, ok := s.items.Get(key); ok {
		next -= store.EntrySize(key, old.(string))
	}
	if s.quota > 0 && next > s.quota {
		return fmt.Errorf("memstore: key=%s size=%d quota=%d: %w", key, next, s.quota, store.ErrQuotaExceeded)
	}

	s.items.Set(key, value, cache.NoExpiration)
	s.used = next
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.items.Get(key); ok {
		s.used -= store.EntrySize(key, old.(string))
		s.items.Delete(key)
	}
	return nil
}

// Used は現在の使用量を返します。
func (s *Store) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// Len は保存されているキーの数を返します。
func (s *Store) Len() int {
	return s.items.ItemCount()
}
