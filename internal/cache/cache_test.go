package cache

import (
	"context"
	"testing"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/config"
	"github.com/pratik-mahalle/tocguard/internal/domain/buffer"
	"github.com/pratik-mahalle/tocguard/internal/pkg/logger"
)

func TestMemory_GetSetInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(8, time.Minute)

	if _, ok := c.Get(ctx, 1); ok {
		t.Fatal("Get() hit on empty cache")
	}

	c.Set(ctx, &buffer.Definition{ID: 1, Name: "Drum buffer", TargetSize: 100})

	got, ok := c.Get(ctx, 1)
	if !ok || got.Name != "Drum buffer" {
		t.Fatalf("Get() = %v, %v", got, ok)
	}

	got.Name = "mutated"
	again, _ := c.Get(ctx, 1)
	if again.Name != "Drum buffer" {
		t.Error("cached entry was mutated through a returned copy")
	}

	c.Invalidate(ctx, 1)
	if _, ok := c.Get(ctx, 1); ok {
		t.Error("Get() hit after Invalidate()")
	}
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(8, 20*time.Millisecond)
	c.Set(ctx, &buffer.Definition{ID: 2})

	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get(ctx, 2); ok {
		t.Error("Get() returned an expired entry")
	}
}

func TestMemory_Eviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(2, time.Minute)
	for id := int64(1); id <= 3; id++ {
		c.Set(ctx, &buffer.Definition{ID: id})
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.Get(ctx, 1); ok {
		t.Error("oldest entry was not evicted")
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	log := logger.Nop()

	tests := []struct {
		name    string
		cfg     config.CacheConfig
		wantErr bool
	}{
		{"none", config.CacheConfig{Backend: BackendNone}, false},
		{"memory", config.CacheConfig{Backend: BackendMemory, Size: 4, TTL: time.Minute}, false},
		{"redis unreachable", config.CacheConfig{Backend: BackendRedis, RedisAddr: "127.0.0.1:1"}, true},
		{"unknown", config.CacheConfig{Backend: "memcached"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, closeFn, err := New(ctx, tt.cfg, log)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if c == nil {
					t.Error("New() returned nil cache")
				}
				_ = closeFn()
			}
		})
	}
}
