package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pratik-mahalle/tocguard/internal/domain/buffer"
	"github.com/pratik-mahalle/tocguard/internal/pkg/metrics"
)

// Memory is a size-bounded, expiring in-process cache
type Memory struct {
	lru *expirable.LRU[int64, buffer.Definition]
}

// NewMemory creates a memory cache holding at most size definitions for ttl
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = 1024
	}
	return &Memory{lru: expirable.NewLRU[int64, buffer.Definition](size, nil, ttlOrDefault(ttl))}
}

// Get returns a copy so callers cannot mutate the cached entry
func (m *Memory) Get(ctx context.Context, id int64) (*buffer.Definition, bool) {
	d, ok := m.lru.Get(id)
	metrics.RecordCacheLookup(BackendMemory, ok)
	if !ok {
		return nil, false
	}
	return &d, true
}

func (m *Memory) Set(ctx context.Context, d *buffer.Definition) {
	m.lru.Add(d.ID, *d)
}

func (m *Memory) Invalidate(ctx context.Context, id int64) {
	m.lru.Remove(id)
}

// Len reports the number of live entries
func (m *Memory) Len() int {
	return m.lru.Len()
}
