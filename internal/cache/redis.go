package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pratik-mahalle/tocguard/internal/domain/buffer"
	"github.com/pratik-mahalle/tocguard/internal/pkg/logger"
	"github.com/pratik-mahalle/tocguard/internal/pkg/metrics"
)

// RedisOptions configures the Redis cache
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Redis shares cached definitions between API replicas. Cache failures are
// logged and treated as misses.
type Redis struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedis connects and pings the server
func NewRedis(ctx context.Context, opts RedisOptions, log *logger.Logger) (*Redis, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if opts.Prefix == "" {
		opts.Prefix = "tocguard"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisWithClient(rdb, opts.Prefix, opts.TTL, log), nil
}

// NewRedisWithClient wraps an existing client
func NewRedisWithClient(rdb *goredis.Client, prefix string, ttl time.Duration, log *logger.Logger) *Redis {
	return &Redis{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttlOrDefault(ttl),
		log:    log.Component("definition-cache"),
	}
}

func (r *Redis) key(id int64) string {
	return fmt.Sprintf("%s:buffer_definition:%d", r.prefix, id)
}

func (r *Redis) Get(ctx context.Context, id int64) (*buffer.Definition, bool) {
	raw, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			r.log.WithError(err).Warn("Buffer definition cache read failed")
		}
		metrics.RecordCacheLookup(BackendRedis, false)
		return nil, false
	}

	var d buffer.Definition
	if err := json.Unmarshal(raw, &d); err != nil {
		r.log.WithError(err).Warn("Discarding unreadable cached buffer definition")
		_ = r.rdb.Del(ctx, r.key(id)).Err()
		metrics.RecordCacheLookup(BackendRedis, false)
		return nil, false
	}

	metrics.RecordCacheLookup(BackendRedis, true)
	return &d, true
}

func (r *Redis) Set(ctx context.Context, d *buffer.Definition) {
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, r.key(d.ID), raw, r.ttl).Err(); err != nil {
		r.log.WithError(err).Warn("Buffer definition cache write failed")
	}
}

func (r *Redis) Invalidate(ctx context.Context, id int64) {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		r.log.WithError(err).Warn("Buffer definition cache invalidation failed")
	}
}

// Close releases the client
func (r *Redis) Close() error {
	return r.rdb.Close()
}
