package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisTier is the shared cache level, used when multiple analyzer
// instances run behind a load balancer. Redis handles expiry itself,
// so entries carry their TTL rather than a stored timestamp.
type RedisTier struct {
	client *redis.Client
	prefix string
}

// NewRedisTier connects to Redis and verifies the connection.
func NewRedisTier(ctx context.Context, addr, password string, db int) (*RedisTier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, eris.Wrap(err, "connect to redis")
	}
	return &RedisTier{client: client, prefix: "compliance:"}, nil
}

func (r *RedisTier) Name() string { return "redis" }

func (r *RedisTier) Get(ctx context.Context, key string) (*Entry, error) {
	full := r.prefix + key
	value, err := r.client.Get(ctx, full).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "redis get")
	}
	ttl, err := r.client.TTL(ctx, full).Result()
	if err != nil || ttl <= 0 {
		// Expiry unknown; treat as valid with a short remaining life.
		ttl = time.Minute
	}
	return &Entry{Value: value, ExpiresAt: time.Now().Add(ttl)}, nil
}

func (r *RedisTier) Set(ctx context.Context, key string, entry *Entry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.prefix+key, entry.Value, ttl).Err(); err != nil {
		return eris.Wrap(err, "redis set")
	}
	return nil
}

func (r *RedisTier) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return eris.Wrap(err, "redis delete")
	}
	return nil
}

func (r *RedisTier) DeletePattern(ctx context.Context, pattern string) (int, error) {
	match := r.prefix + "*" + pattern + "*"
	removed := 0
	iter := r.client.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, eris.Wrap(err, "redis delete scanned key")
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, eris.Wrap(err, "redis scan")
	}
	return removed, nil
}

func (r *RedisTier) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return eris.Wrap(err, "redis clear")
		}
	}
	if err := iter.Err(); err != nil {
		return eris.Wrap(err, "redis scan")
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *RedisTier) Close() error {
	return r.client.Close()
}
