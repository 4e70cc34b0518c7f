package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestTiered(t *testing.T, tiers ...Tier) *Tiered {
	t.Helper()
	return NewTiered(NewMetrics(nil), tiers...)
}

func TestMemoryTierRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryTier(10)

	entry := &Entry{Value: []byte("requirements"), ExpiresAt: time.Now().Add(time.Minute)}
	if err := m.Set(ctx, "analysis:3304", entry); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := m.Get(ctx, "analysis:3304")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || string(got.Value) != "requirements" {
		t.Fatalf("unexpected entry: %+v", got)
	}

	if got, _ := m.Get(ctx, "analysis:9999"); got != nil {
		t.Fatal("expected miss for unknown key")
	}
}

func TestMemoryTierExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryTier(10)

	entry := &Entry{Value: []byte("x"), ExpiresAt: time.Now().Add(-time.Second)}
	if err := m.Set(ctx, "stale", entry); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := m.Get(ctx, "stale"); got != nil {
		t.Fatal("expired entry should be a miss")
	}
	if m.Len() != 0 {
		t.Fatalf("expired entry should be evicted, len = %d", m.Len())
	}
}

func TestMemoryTierLRUEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryTier(3)
	expires := time.Now().Add(time.Minute)

	for i := 0; i < 3; i++ {
		_ = m.Set(ctx, fmt.Sprintf("key-%d", i), &Entry{Value: []byte("v"), ExpiresAt: expires})
	}
	// Touch key-0 so key-1 becomes the eviction candidate.
	if got, _ := m.Get(ctx, "key-0"); got == nil {
		t.Fatal("key-0 should be present")
	}
	_ = m.Set(ctx, "key-3", &Entry{Value: []byte("v"), ExpiresAt: expires})

	if m.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", m.Len())
	}
	if got, _ := m.Get(ctx, "key-1"); got != nil {
		t.Fatal("key-1 should have been evicted")
	}
	if got, _ := m.Get(ctx, "key-0"); got == nil {
		t.Fatal("recently used key-0 should survive eviction")
	}
}

func TestMemoryTierEvictionCounter(t *testing.T) {
	ctx := context.Background()
	metrics := NewMetrics(nil)
	m := NewMemoryTier(2)
	m.OnEvict(func() { metrics.RecordEviction(m.Name()) })
	expires := time.Now().Add(time.Minute)

	for i := 0; i < 4; i++ {
		_ = m.Set(ctx, fmt.Sprintf("key-%d", i), &Entry{Value: []byte("v"), ExpiresAt: expires})
	}
	// Capacity 2, four inserts: two entries pushed out by LRU pressure.
	if got := metrics.Snapshot()["memory"].Evictions; got != 2 {
		t.Fatalf("expected 2 evictions, got %d", got)
	}

	// Explicit deletes are not evictions.
	if err := m.Delete(ctx, "key-3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := metrics.Snapshot()["memory"].Evictions; got != 2 {
		t.Fatalf("delete must not count as eviction, got %d", got)
	}

	// An expired entry dropped on read counts too. The tier has a free
	// slot after the delete, so the set itself evicts nothing.
	_ = m.Set(ctx, "stale", &Entry{Value: []byte("v"), ExpiresAt: time.Now().Add(-time.Second)})
	if got, _ := m.Get(ctx, "stale"); got != nil {
		t.Fatal("expired entry should be a miss")
	}
	if got := metrics.Snapshot()["memory"].Evictions; got != 3 {
		t.Fatalf("expected 3 evictions, got %d", got)
	}
}

func TestMemoryTierDeletePattern(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryTier(10)
	expires := time.Now().Add(time.Minute)

	_ = m.Set(ctx, "evidence:FDA:3304", &Entry{Value: []byte("a"), ExpiresAt: expires})
	_ = m.Set(ctx, "evidence:USDA:3304", &Entry{Value: []byte("b"), ExpiresAt: expires})
	_ = m.Set(ctx, "evidence:FDA:8471", &Entry{Value: []byte("c"), ExpiresAt: expires})

	removed, err := m.DeletePattern(ctx, ":3304")
	if err != nil {
		t.Fatalf("delete pattern: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if got, _ := m.Get(ctx, "evidence:FDA:8471"); got == nil {
		t.Fatal("non-matching key should survive")
	}
}

func TestSQLiteTierRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteTier(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	entry := &Entry{Value: []byte(`{"total":3}`), ExpiresAt: time.Now().Add(time.Minute)}
	if err := s.Set(ctx, "analysis:3304", entry); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.Get(ctx, "analysis:3304")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || string(got.Value) != `{"total":3}` {
		t.Fatalf("unexpected entry: %+v", got)
	}

	// Overwrite.
	entry2 := &Entry{Value: []byte(`{"total":4}`), ExpiresAt: time.Now().Add(time.Minute)}
	if err := s.Set(ctx, "analysis:3304", entry2); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = s.Get(ctx, "analysis:3304")
	if string(got.Value) != `{"total":4}` {
		t.Fatalf("expected overwritten value, got %s", got.Value)
	}
}

func TestSQLiteTierExpiryAndPrune(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteTier(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	_ = s.Set(ctx, "fresh", &Entry{Value: []byte("a"), ExpiresAt: time.Now().Add(time.Minute)})
	_ = s.Set(ctx, "stale", &Entry{Value: []byte("b"), ExpiresAt: time.Now().Add(-2 * time.Second)})

	if got, _ := s.Get(ctx, "stale"); got != nil {
		t.Fatal("expired entry should be a miss")
	}

	pruned, err := s.Prune(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	// The stale row may already have been dropped by the Get above.
	if pruned > 1 {
		t.Fatalf("expected at most 1 pruned row, got %d", pruned)
	}
	if got, _ := s.Get(ctx, "fresh"); got == nil {
		t.Fatal("fresh entry should survive prune")
	}
}

func TestSQLiteTierDeletePattern(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteTier(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	expires := time.Now().Add(time.Minute)
	_ = s.Set(ctx, "evidence:FDA:3304", &Entry{Value: []byte("a"), ExpiresAt: expires})
	_ = s.Set(ctx, "evidence:FDA:8471", &Entry{Value: []byte("b"), ExpiresAt: expires})

	removed, err := s.DeletePattern(ctx, ":3304")
	if err != nil {
		t.Fatalf("delete pattern: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}

func TestTieredPromotesOnLowerTierHit(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryTier(10)
	disk, err := NewSQLiteTier(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer disk.Close()
	c := newTestTiered(t, mem, disk)

	// Seed only the lower tier.
	_ = disk.Set(ctx, "analysis:3304", &Entry{Value: []byte("v"), ExpiresAt: time.Now().Add(time.Minute)})

	if got := c.Get(ctx, "analysis:3304"); string(got) != "v" {
		t.Fatalf("expected hit from lower tier, got %q", got)
	}
	// The hit must now live in the memory tier too.
	if got, _ := mem.Get(ctx, "analysis:3304"); got == nil {
		t.Fatal("value should have been promoted to memory")
	}

	stats := c.Stats()
	if stats["memory"].Misses != 1 || stats["sqlite"].Hits != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestTieredWriteThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryTier(10)
	disk, err := NewSQLiteTier(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer disk.Close()
	c := newTestTiered(t, mem, disk)

	c.Set(ctx, "evidence:FDA:3304", []byte("a"), time.Minute)
	c.Set(ctx, "evidence:CPSC:3304", []byte("b"), time.Minute)
	c.Set(ctx, "evidence:FDA:8471", []byte("c"), time.Minute)

	// Both tiers should carry the value.
	if got, _ := disk.Get(ctx, "evidence:FDA:3304"); got == nil {
		t.Fatal("write must reach the sqlite tier")
	}

	removed := c.InvalidatePattern(ctx, ":3304")
	// Two keys, each present in two tiers.
	if removed != 4 {
		t.Fatalf("expected 4 removals across tiers, got %d", removed)
	}
	if got := c.Get(ctx, "evidence:FDA:3304"); got != nil {
		t.Fatal("invalidated key should miss")
	}
	if got := c.Get(ctx, "evidence:FDA:8471"); string(got) != "c" {
		t.Fatal("unrelated key should survive invalidation")
	}
}

func TestTieredShortTTLExpires(t *testing.T) {
	ctx := context.Background()
	c := newTestTiered(t, NewMemoryTier(10))

	c.Set(ctx, "search:3304", []byte("v"), 50*time.Millisecond)
	if got := c.Get(ctx, "search:3304"); string(got) != "v" {
		t.Fatal("expected immediate hit")
	}
	time.Sleep(80 * time.Millisecond)
	if got := c.Get(ctx, "search:3304"); got != nil {
		t.Fatal("entry should expire after its TTL")
	}
}
