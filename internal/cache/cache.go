package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultSize = 100
	DefaultTTL  = 10 * time.Minute
)

// Cache is a string-keyed store with per-entry expiry. Implementations must
// be safe for concurrent use.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V)
}

// Memory is an in-process LRU cache whose entries expire after a fixed TTL.
type Memory[V any] struct {
	lru *expirable.LRU[string, V]
}

// NewMemory creates a Memory cache holding at most size live entries. The
// least recently used entry is evicted on overflow.
func NewMemory[V any](size int, ttl time.Duration) *Memory[V] {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory[V]{lru: expirable.NewLRU[string, V](size, nil, ttl)}
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool) {
	return m.lru.Get(key)
}

func (m *Memory[V]) Set(_ context.Context, key string, value V) {
	m.lru.Add(key, value)
}

// Len returns the number of live entries.
func (m *Memory[V]) Len() int { return m.lru.Len() }
