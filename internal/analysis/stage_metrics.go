package analysis

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lawgenie/compliance-cli/internal/model"
)

// StageCounts aggregates outcomes of one pipeline stage across runs.
type StageCounts struct {
	Complete int64 `json:"complete"`
	Fallback int64 `json:"fallback"`
	Failed   int64 `json:"failed"`
}

// StageMetrics counts stage outcomes across every analysis served by
// this process. It feeds both the prometheus endpoint and the stats
// snapshot.
type StageMetrics struct {
	outcomes *prometheus.CounterVec

	mu     sync.Mutex
	counts map[string]StageCounts
}

// NewStageMetrics builds stage counters and registers the prometheus
// collector when reg is non-nil.
func NewStageMetrics(reg prometheus.Registerer) *StageMetrics {
	m := &StageMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_pipeline_stage_total",
			Help: "Pipeline stage outcomes by stage and status.",
		}, []string{"stage", "status"}),
		counts: make(map[string]StageCounts),
	}
	if reg != nil {
		reg.MustRegister(m.outcomes)
	}
	return m
}

// Record counts one stage outcome.
func (m *StageMetrics) Record(stage string, status model.StageStatus) {
	m.outcomes.WithLabelValues(stage, string(status)).Inc()
	m.mu.Lock()
	c := m.counts[stage]
	switch status {
	case model.StageComplete:
		c.Complete++
	case model.StageFallback:
		c.Fallback++
	case model.StageFailed:
		c.Failed++
	}
	m.counts[stage] = c
	m.mu.Unlock()
}

// Snapshot returns a copy of the per-stage counters.
func (m *StageMetrics) Snapshot() map[string]StageCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]StageCounts, len(m.counts))
	for name, c := range m.counts {
		out[name] = c
	}
	return out
}
