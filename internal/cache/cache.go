// Package cache provides buffer definition caches backed by an in-process
// LRU or Redis.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/config"
	"github.com/pratik-mahalle/tocguard/internal/domain/buffer"
	"github.com/pratik-mahalle/tocguard/internal/pkg/logger"
)

// Backends
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// New builds the cache selected by configuration. The returned close
// function releases backend connections.
func New(ctx context.Context, cfg config.CacheConfig, log *logger.Logger) (buffer.DefinitionCache, func() error, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return Noop{}, func() error { return nil }, nil
	case BackendMemory:
		return NewMemory(cfg.Size, cfg.TTL), func() error { return nil }, nil
	case BackendRedis:
		c, err := NewRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			TTL:      cfg.TTL,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// Noop never stores anything
type Noop struct{}

func (Noop) Get(ctx context.Context, id int64) (*buffer.Definition, bool) { return nil, false }
func (Noop) Set(ctx context.Context, d *buffer.Definition)                {}
func (Noop) Invalidate(ctx context.Context, id int64)                     {}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 5 * time.Minute
	}
	return ttl
}
