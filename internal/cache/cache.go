// Package cache provides the tiered result cache: an in-process LRU,
// a local SQLite tier, and an optional Redis tier shared across
// instances. Lookups walk the tiers fastest-first and promote hits
// upward; writes go through every tier.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TTLs by data class. Analysis results are the most expensive to
// rebuild; raw search results go stale quickly.
const (
	TTLAnalysis  = 24 * time.Hour
	TTLEvidence  = 6 * time.Hour
	TTLSearch    = time.Hour
	TTLAgencyMap = 7 * 24 * time.Hour
)

// Entry is a cached value with its absolute expiry.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether the entry's TTL has lapsed.
func (e *Entry) Expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Tier is a single cache level. A nil entry with a nil error is a miss.
type Tier interface {
	Name() string
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	// DeletePattern removes every key containing the given substring
	// and returns how many were dropped.
	DeletePattern(ctx context.Context, pattern string) (int, error)
	Clear(ctx context.Context) error
}

// Tiered walks cache tiers in order. Tier failures are logged and
// treated as misses so a dead Redis never takes analysis down.
type Tiered struct {
	tiers   []Tier
	metrics *Metrics
}

// NewTiered builds a tiered cache over the given levels, fastest first.
func NewTiered(metrics *Metrics, tiers ...Tier) *Tiered {
	return &Tiered{tiers: tiers, metrics: metrics}
}

// Get returns the cached value for key, or nil on a miss. A hit in a
// lower tier is promoted into every tier above it with the remaining
// TTL preserved.
func (c *Tiered) Get(ctx context.Context, key string) []byte {
	for i, tier := range c.tiers {
		entry, err := tier.Get(ctx, key)
		if err != nil {
			zap.L().Warn("cache tier get failed",
				zap.String("tier", tier.Name()),
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		if entry == nil {
			c.metrics.RecordMiss(tier.Name())
			continue
		}
		if entry.Expired() {
			c.metrics.RecordMiss(tier.Name())
			c.metrics.RecordEviction(tier.Name())
			_ = tier.Delete(ctx, key)
			continue
		}
		c.metrics.RecordHit(tier.Name())
		c.promote(ctx, key, entry, i)
		return entry.Value
	}
	return nil
}

func (c *Tiered) promote(ctx context.Context, key string, entry *Entry, hitTier int) {
	for j := 0; j < hitTier; j++ {
		if err := c.tiers[j].Set(ctx, key, entry); err != nil {
			zap.L().Warn("cache promote failed",
				zap.String("tier", c.tiers[j].Name()),
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

// Set writes value through every tier with the given TTL.
func (c *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	entry := &Entry{Value: value, ExpiresAt: time.Now().Add(ttl)}
	for _, tier := range c.tiers {
		if err := tier.Set(ctx, key, entry); err != nil {
			zap.L().Warn("cache tier set failed",
				zap.String("tier", tier.Name()),
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

// Delete removes key from every tier.
func (c *Tiered) Delete(ctx context.Context, key string) {
	for _, tier := range c.tiers {
		if err := tier.Delete(ctx, key); err != nil {
			zap.L().Warn("cache tier delete failed",
				zap.String("tier", tier.Name()),
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

// InvalidatePattern drops every key containing pattern across all
// tiers and returns the total number removed.
func (c *Tiered) InvalidatePattern(ctx context.Context, pattern string) int {
	total := 0
	for _, tier := range c.tiers {
		n, err := tier.DeletePattern(ctx, pattern)
		if err != nil {
			zap.L().Warn("cache invalidate failed",
				zap.String("tier", tier.Name()),
				zap.String("pattern", pattern),
				zap.Error(err))
			continue
		}
		total += n
	}
	c.metrics.RecordInvalidation(pattern, total)
	return total
}

// Clear empties every tier.
func (c *Tiered) Clear(ctx context.Context) error {
	var firstErr error
	for _, tier := range c.tiers {
		if err := tier.Clear(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// TierNames returns the tier names in lookup order, fastest first.
func (c *Tiered) TierNames() []string {
	names := make([]string, len(c.tiers))
	for i, tier := range c.tiers {
		names[i] = tier.Name()
	}
	return names
}

// Stats returns hit/miss counters per tier.
func (c *Tiered) Stats() map[string]TierStats {
	return c.metrics.Snapshot()
}
