package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// TierStats holds hit/miss/eviction counters for one cache tier.
type TierStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// HitRate returns hits over total lookups, or 0 with no traffic.
func (s TierStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Metrics tracks per-tier cache effectiveness, exported to Prometheus
// and readable through Snapshot for the stats endpoint.
type Metrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	evictions     *prometheus.CounterVec
	invalidations prometheus.Counter

	mu    sync.Mutex
	stats map[string]*TierStats
}

// NewMetrics registers the cache collectors on reg. A nil registerer
// is allowed for tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_cache_hits_total",
			Help: "Cache hits by tier.",
		}, []string{"tier"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_cache_misses_total",
			Help: "Cache misses by tier.",
		}, []string{"tier"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_cache_evictions_total",
			Help: "Entries evicted by LRU pressure or expiry, by tier.",
		}, []string{"tier"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compliance_cache_invalidated_keys_total",
			Help: "Keys removed by pattern invalidation.",
		}),
		stats: make(map[string]*TierStats),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.evictions, m.invalidations)
	}
	return m
}

// RecordHit counts a hit for the named tier.
func (m *Metrics) RecordHit(tier string) {
	m.hits.WithLabelValues(tier).Inc()
	m.mu.Lock()
	m.tierLocked(tier).Hits++
	m.mu.Unlock()
}

// RecordMiss counts a miss for the named tier.
func (m *Metrics) RecordMiss(tier string) {
	m.misses.WithLabelValues(tier).Inc()
	m.mu.Lock()
	m.tierLocked(tier).Misses++
	m.mu.Unlock()
}

// RecordEviction counts one evicted entry for the named tier.
func (m *Metrics) RecordEviction(tier string) {
	m.evictions.WithLabelValues(tier).Inc()
	m.mu.Lock()
	m.tierLocked(tier).Evictions++
	m.mu.Unlock()
}

// RecordInvalidation counts keys removed by a pattern invalidation.
func (m *Metrics) RecordInvalidation(_ string, removed int) {
	m.invalidations.Add(float64(removed))
}

// Snapshot returns a copy of the per-tier counters.
func (m *Metrics) Snapshot() map[string]TierStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]TierStats, len(m.stats))
	for tier, s := range m.stats {
		out[tier] = *s
	}
	return out
}

func (m *Metrics) tierLocked(tier string) *TierStats {
	s, ok := m.stats[tier]
	if !ok {
		s = &TierStats{}
		m.stats[tier] = s
	}
	return s
}
